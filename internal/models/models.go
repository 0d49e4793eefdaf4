// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package models holds the shared data types for the ALN orchestrator:
// the token catalog entry, the session record and everything it owns
// (transactions, scores, video queue items, device connections), and
// the read-side GameState projection.
package models

import (
	"regexp"
	"strconv"
	"time"
)

var groupMultiplierPattern = regexp.MustCompile(`^(.*?)\s*\(x(\d+)\)$`)

// ParseGroupMultiplier splits a catalog group string of the form
// "<name> (xN)" into its base name and multiplier. Groups without the
// "(xN)" suffix have an implicit multiplier of 1. Returns ok=false for
// an empty group string.
func ParseGroupMultiplier(group string) (name string, multiplier int, ok bool) {
	if group == "" {
		return "", 0, false
	}
	if m := groupMultiplierPattern.FindStringSubmatch(group); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil && n > 0 {
			return m[1], n, true
		}
	}
	return group, 1, true
}

// MemoryType classifies a token's narrative category.
type MemoryType string

const (
	MemoryTypePersonal  MemoryType = "Personal"
	MemoryTypeBusiness  MemoryType = "Business"
	MemoryTypeTechnical MemoryType = "Technical"
	MemoryTypeUnknown   MemoryType = "UNKNOWN"
)

// BasePoints maps a token's valueRating (1-5) to its base point value.
var BasePoints = map[int]int{
	1: 100,
	2: 500,
	3: 1000,
	4: 5000,
	5: 10000,
}

// TypeMultiplier maps a MemoryType to its scoring multiplier.
var TypeMultiplier = map[MemoryType]int{
	MemoryTypePersonal:  1,
	MemoryTypeBusiness:  3,
	MemoryTypeTechnical: 5,
}

// MediaAssets names the optional media files associated with a token.
type MediaAssets struct {
	Image           string `json:"image,omitempty"`
	Audio           string `json:"audio,omitempty"`
	Video           string `json:"video,omitempty"`
	ProcessingImage string `json:"processingImage,omitempty"`
}

// Token is an immutable catalog entry loaded once at startup.
type Token struct {
	ID          string       `json:"id"`
	MemoryType  MemoryType   `json:"memoryType"`
	ValueRating *int         `json:"valueRating"`
	Group       string       `json:"group,omitempty"`
	MediaAssets *MediaAssets `json:"mediaAssets,omitempty"`
}

// Value computes the scored point value of the token: base points by
// valueRating times the memory-type multiplier. Unrated or
// unknown-type tokens score 0.
func (t Token) Value() int {
	if t.ValueRating == nil {
		return 0
	}
	base, ok := BasePoints[*t.ValueRating]
	if !ok {
		return 0
	}
	mult, ok := TypeMultiplier[t.MemoryType]
	if !ok {
		return 0
	}
	return base * mult
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionEnded  SessionStatus = "ended"
)

// DeviceType distinguishes the three kinds of connected device.
type DeviceType string

const (
	DeviceGM     DeviceType = "gm"
	DevicePlayer DeviceType = "player"
	DeviceAdmin  DeviceType = "admin"
)

// ScanMode selects whether a scan is worth points or narrative-only.
type ScanMode string

const (
	ModeBlackmarket ScanMode = "blackmarket"
	ModeDetective   ScanMode = "detective"
)

// TransactionStatus is the outcome of applying a scan.
type TransactionStatus string

const (
	TxAccepted  TransactionStatus = "accepted"
	TxDuplicate TransactionStatus = "duplicate"
	TxError     TransactionStatus = "error"
	TxUnknown   TransactionStatus = "unknown"
)

// Transaction is one scan event, append-only within a Session.
type Transaction struct {
	ID                    string            `json:"id"`
	TokenID               string            `json:"tokenId"`
	TeamID                string            `json:"teamId"`
	DeviceID              string            `json:"deviceId"`
	DeviceType            DeviceType        `json:"deviceType"`
	Mode                  ScanMode          `json:"mode"`
	Status                TransactionStatus `json:"status"`
	Points                int               `json:"points"`
	Timestamp             time.Time         `json:"timestamp"`
	MemoryType            MemoryType        `json:"memoryType,omitempty"`
	ValueRating           *int              `json:"valueRating,omitempty"`
	Group                 string            `json:"group,omitempty"`
	IsUnknown             bool              `json:"isUnknown"`
	OriginalTransactionID string            `json:"originalTransactionId,omitempty"`
}

// TokenValue recomputes the scored value of the token this transaction
// denormalized at scan time. It is independent of Points, which may
// have been zeroed by detective mode or duplicate/unknown status;
// group-completion bonuses are computed against the token's inherent
// value regardless of how this particular scan scored.
func (t Transaction) TokenValue() int {
	if t.ValueRating == nil {
		return 0
	}
	base, ok := BasePoints[*t.ValueRating]
	if !ok {
		return 0
	}
	mult, ok := TypeMultiplier[t.MemoryType]
	if !ok {
		return 0
	}
	return base * mult
}

// AdminAdjustment is a manual score correction applied by an admin.
type AdminAdjustment struct {
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// TeamScore is maintained incrementally as transactions are applied.
type TeamScore struct {
	TeamID           string            `json:"teamId"`
	BaseScore        int               `json:"baseScore"`
	BonusPoints      int               `json:"bonusPoints"`
	CurrentScore     int               `json:"currentScore"`
	TokensScanned    int               `json:"tokensScanned"`
	CompletedGroups  []string          `json:"completedGroups"`
	AdminAdjustments []AdminAdjustment `json:"adminAdjustments"`
	LastUpdate       time.Time         `json:"lastUpdate"`

	// groupCounts tracks, per group name, how many tokens of that group
	// this team has scanned so far; not serialized, rebuilt on load.
	groupCounts map[string]int `json:"-"`

	// groupValueSums tracks, per group name, the running sum of
	// TokenValue() for tokens of that group this team has scanned;
	// not serialized, rebuilt on load. Used to compute the
	// group-completion bonus once the group's size is reached.
	groupValueSums map[string]int `json:"-"`
}

// NewTeamScore returns a zeroed TeamScore for a newly discovered team.
func NewTeamScore(teamID string) *TeamScore {
	return &TeamScore{
		TeamID:          teamID,
		CompletedGroups: []string{},
		groupCounts:     map[string]int{},
	}
}

// ObserveGroupToken records that this team scanned one more token
// belonging to groupName and returns the running count for that group.
func (s *TeamScore) ObserveGroupToken(groupName string) int {
	if s.groupCounts == nil {
		s.groupCounts = map[string]int{}
	}
	s.groupCounts[groupName]++
	return s.groupCounts[groupName]
}

// GroupCompleted reports whether groupName is already recorded as complete.
func (s *TeamScore) GroupCompleted(groupName string) bool {
	for _, g := range s.CompletedGroups {
		if g == groupName {
			return true
		}
	}
	return false
}

// MarkGroupCompleted appends groupName to CompletedGroups if not already present.
func (s *TeamScore) MarkGroupCompleted(groupName string) {
	if s.GroupCompleted(groupName) {
		return
	}
	s.CompletedGroups = append(s.CompletedGroups, groupName)
}

// Recompute sets CurrentScore to the sum of BaseScore and BonusPoints.
func (s *TeamScore) Recompute() {
	s.CurrentScore = s.BaseScore + s.BonusPoints
}

// GroupBonusResult reports whether applying a transaction completed a
// group for the team, and if so the bonus awarded.
type GroupBonusResult struct {
	GroupCompleted bool
	GroupName      string
	BonusPoints    int
}

// ApplyTransaction folds an accepted transaction's points into the
// score, then checks whether the team has now collected every token
// of the transaction's group.
// Transactions with status other than accepted should not be passed
// here; callers are responsible for that filtering.
func (s *TeamScore) ApplyTransaction(tx Transaction) GroupBonusResult {
	s.BaseScore += tx.Points
	s.TokensScanned++
	s.LastUpdate = tx.Timestamp
	s.Recompute()

	result := GroupBonusResult{}
	if tx.Group == "" {
		return result
	}
	name, size, ok := ParseGroupMultiplier(tx.Group)
	if !ok || s.GroupCompleted(name) {
		return result
	}

	if s.groupValueSums == nil {
		s.groupValueSums = map[string]int{}
	}
	s.groupValueSums[name] += tx.TokenValue()
	count := s.ObserveGroupToken(name)
	if count < size {
		return result
	}

	bonus := (size - 1) * s.groupValueSums[name]
	s.BonusPoints += bonus
	s.MarkGroupCompleted(name)
	s.Recompute()

	result.GroupCompleted = true
	result.GroupName = name
	result.BonusPoints = bonus
	return result
}

// VideoState is the lifecycle state of a VideoQueueItem.
type VideoState string

const (
	VideoQueued    VideoState = "queued"
	VideoLoading   VideoState = "loading"
	VideoPlaying   VideoState = "playing"
	VideoPaused    VideoState = "paused"
	VideoCompleted VideoState = "completed"
	VideoError     VideoState = "error"
)

// VideoQueueItem is one entry in the single-slot video serializer.
type VideoQueueItem struct {
	ID              string     `json:"id"`
	TokenID         string     `json:"tokenId"`
	Filename        string     `json:"filename"`
	Duration        *float64   `json:"duration,omitempty"`
	State           VideoState `json:"state"`
	QueuedAt        time.Time  `json:"queuedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	ExpectedEndTime *time.Time `json:"expectedEndTime,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// DeviceConnection tracks one device's identity and connection state.
type DeviceConnection struct {
	ID                string     `json:"id"`
	Type              DeviceType `json:"type"`
	Name              string     `json:"name,omitempty"`
	Version           string     `json:"version,omitempty"`
	IPAddress         string     `json:"ipAddress,omitempty"`
	ConnectionTime    time.Time  `json:"connectionTime"`
	LastHeartbeat     time.Time  `json:"lastHeartbeat"`
	DisconnectionTime *time.Time `json:"disconnectionTime,omitempty"`
	SocketID          string     `json:"-"`
}

// Connected reports whether the device currently has a live socket.
func (d *DeviceConnection) Connected() bool {
	return d.SocketID != ""
}

// Clone returns a shallow copy of the device record, safe for a
// caller to hold onto without racing further Session Manager updates.
func (d *DeviceConnection) Clone() *DeviceConnection {
	if d == nil {
		return nil
	}
	out := *d
	if d.DisconnectionTime != nil {
		t := *d.DisconnectionTime
		out.DisconnectionTime = &t
	}
	return &out
}

// Session is the single authoritative game record.
type Session struct {
	ID                    string                       `json:"id"`
	Name                  string                       `json:"name"`
	StartTime             time.Time                    `json:"startTime"`
	EndTime               *time.Time                   `json:"endTime,omitempty"`
	Status                SessionStatus                `json:"status"`
	Teams                 []string                     `json:"teams"`
	Transactions          []Transaction                `json:"transactions"`
	Scores                map[string]*TeamScore        `json:"scores"`
	ConnectedDevices      map[string]*DeviceConnection `json:"connectedDevices"`
	VideoQueue            []VideoQueueItem             `json:"videoQueue"`
	ScannedTokensByDevice map[string]map[string]bool  `json:"scannedTokensByDevice"`
	Metadata              map[string]interface{}      `json:"metadata,omitempty"`
}

// IsTokenScannedByDevice reports whether deviceID already has an accepted
// transaction for tokenID in this session, and the id of the transaction
// that first claimed it (for duplicate reporting).
func (s *Session) IsTokenScannedByDevice(deviceID, tokenID string) (bool, string) {
	if s.ScannedTokensByDevice == nil {
		return false, ""
	}
	seen, ok := s.ScannedTokensByDevice[deviceID]
	if !ok || !seen[tokenID] {
		return false, ""
	}
	for i := range s.Transactions {
		t := &s.Transactions[i]
		if t.DeviceID == deviceID && t.TokenID == tokenID && t.Status == TxAccepted {
			return true, t.ID
		}
	}
	return true, ""
}

// RebuildScannedTokens reconstructs ScannedTokensByDevice from Transactions.
// Called on session load so the map is always a pure function of the log.
func (s *Session) RebuildScannedTokens() {
	s.ScannedTokensByDevice = map[string]map[string]bool{}
	for _, t := range s.Transactions {
		if t.Status != TxAccepted {
			continue
		}
		if _, ok := s.ScannedTokensByDevice[t.DeviceID]; !ok {
			s.ScannedTokensByDevice[t.DeviceID] = map[string]bool{}
		}
		s.ScannedTokensByDevice[t.DeviceID][t.TokenID] = true
	}
}

// RebuildScores recomputes every team's score from scratch by
// replaying Transactions in order. Called on session load (scores
// themselves are persisted, but the unexported group-tracking state
// inside TeamScore is not) and after transaction:delete, which can
// change which groups are complete.
func (s *Session) RebuildScores() {
	for _, team := range s.Teams {
		if _, ok := s.Scores[team]; !ok {
			s.Scores[team] = NewTeamScore(team)
		}
	}
	for teamID := range s.Scores {
		s.Scores[teamID] = NewTeamScore(teamID)
	}
	for _, tx := range s.Transactions {
		if tx.Status != TxAccepted {
			continue
		}
		score, ok := s.Scores[tx.TeamID]
		if !ok {
			score = NewTeamScore(tx.TeamID)
			s.Scores[tx.TeamID] = score
		}
		score.ApplyTransaction(tx)
	}
}

// Clone returns a deep copy of the session, safe for a caller to read
// or hold onto without racing the Session Manager's mutations.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Teams = append([]string(nil), s.Teams...)
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	out.VideoQueue = append([]VideoQueueItem(nil), s.VideoQueue...)

	out.Scores = make(map[string]*TeamScore, len(s.Scores))
	for id, score := range s.Scores {
		copied := *score
		copied.CompletedGroups = append([]string(nil), score.CompletedGroups...)
		copied.AdminAdjustments = append([]AdminAdjustment(nil), score.AdminAdjustments...)
		out.Scores[id] = &copied
	}

	out.ConnectedDevices = make(map[string]*DeviceConnection, len(s.ConnectedDevices))
	for id, dev := range s.ConnectedDevices {
		copied := *dev
		out.ConnectedDevices[id] = &copied
	}

	out.ScannedTokensByDevice = make(map[string]map[string]bool, len(s.ScannedTokensByDevice))
	for dev, toks := range s.ScannedTokensByDevice {
		cp := make(map[string]bool, len(toks))
		for t, v := range toks {
			cp[t] = v
		}
		out.ScannedTokensByDevice[dev] = cp
	}

	if s.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return &out
}

// SystemStatus reports orchestrator and VLC health for the GameState projection.
type SystemStatus struct {
	Orchestrator string `json:"orchestrator"`
	VLC          string `json:"vlc"`
}

// VideoStatus summarizes the video queue for the GameState projection.
type VideoStatus struct {
	Status          VideoState `json:"status"`
	QueueLength     int        `json:"queueLength"`
	TokenID         string     `json:"tokenId,omitempty"`
	Duration        *float64   `json:"duration,omitempty"`
	Progress        *float64   `json:"progress,omitempty"`
	ExpectedEndTime *time.Time `json:"expectedEndTime,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// GameState is the read-side projection derived on demand; never persisted.
type GameState struct {
	SessionID          string                       `json:"sessionId"`
	Teams              []string                     `json:"teams"`
	Scores             map[string]*TeamScore        `json:"scores"`
	RecentTransactions []Transaction                `json:"recentTransactions"`
	VideoStatus        VideoStatus                  `json:"videoStatus"`
	Devices            map[string]*DeviceConnection `json:"devices"`
	SystemStatus       SystemStatus                 `json:"systemStatus"`
	LastUpdate         time.Time                    `json:"lastUpdate"`
}
