package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sportsbar-av/internal/device"
)

// AckStatus is the outcome reported on an ack topic.
type AckStatus string

const (
	AckOK     AckStatus = "ok"
	AckFailed AckStatus = "failed"
)

// Ack error codes.
const (
	CodeInvalidMessage = "invalid_message"
	CodeNotFound       = "not_found"
	CodeNotConfigured  = "not_configured"
	CodeBusy           = "busy"
	CodeFailed         = "failed"
)

// TVCommand is published to sportsbar/command/tv/{device}.
type TVCommand struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Method  string `json:"method,omitempty"`
}

// BatchCommand is published to sportsbar/command/tv/_batch. Unset batch
// fields take the daemon's control defaults.
type BatchCommand struct {
	ID          string   `json:"id,omitempty"`
	Devices     []string `json:"devices"`
	Command     string   `json:"command"`
	Method      string   `json:"method,omitempty"`
	Sequential  *bool    `json:"sequential,omitempty"`
	DelayMS     *int     `json:"delay_ms,omitempty"`
	Parallelism int      `json:"parallelism,omitempty"`
}

// RouteCommand is published to sportsbar/command/matrix/route.
type RouteCommand struct {
	ID     string `json:"id,omitempty"`
	Input  int    `json:"input"`
	Output int    `json:"output"`
}

// AudioSetCommand is published to sportsbar/command/audio/set.
type AudioSetCommand struct {
	ID     string `json:"id,omitempty"`
	Param  string `json:"param"`
	Value  any    `json:"value"`
	Format string `json:"format,omitempty"`
}

// AckMessage reports the outcome of a bridge command.
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Status    AckStatus `json:"status"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Results   []Result  `json:"results,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResultAck builds the ack for a single TV command.
func NewResultAck(commandID string, res Result) AckMessage {
	ack := AckMessage{CommandID: commandID, Status: AckOK, Result: &res, Timestamp: time.Now().UTC()}
	if !res.Success {
		ack.Status = AckFailed
		ack.Code = CodeFailed
		ack.Error = res.Error
	}
	return ack
}

// NewBatchAck builds the ack for a batch. The batch is ok only if every TV
// succeeded.
func NewBatchAck(commandID string, results []Result) AckMessage {
	s := Summarize(results)
	ack := AckMessage{CommandID: commandID, Status: AckOK, Results: results, Summary: &s, Timestamp: time.Now().UTC()}
	if s.Failed > 0 {
		ack.Status = AckFailed
		ack.Code = CodeFailed
		ack.Error = fmt.Sprintf("%d of %d devices failed", s.Failed, s.Total)
	}
	return ack
}

// NewAckError builds a failed ack for a command that never produced a Result.
func NewAckError(commandID string, err error) AckMessage {
	return AckMessage{
		CommandID: commandID,
		Status:    AckFailed,
		Code:      errorCode(err),
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// NewAckOK builds a successful ack with no result body.
func NewAckOK(commandID string) AckMessage {
	return AckMessage{CommandID: commandID, Status: AckOK, Timestamp: time.Now().UTC()}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, device.ErrDeviceNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotConfigured):
		return CodeNotConfigured
	case errors.Is(err, ErrBusy):
		return CodeBusy
	default:
		return CodeFailed
	}
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}
