// Package mqtt defines how simulation results leave the process over MQTT.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/bessim/core/model"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "bessim"

// Publisher sends a finished result to a broker.
type Publisher interface {
	PublishResult(ctx context.Context, r *model.Result) error
}

// NopPublisher drops every result.
type NopPublisher struct{}

func (NopPublisher) PublishResult(context.Context, *model.Result) error { return nil }

// Topic builds "<prefix>/<strategy>/<run id>/<leaf>". Empty parts are
// skipped so a result without a run id still gets a valid topic.
func Topic(prefix, strategy, runID, leaf string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	parts := []string{strings.TrimSuffix(prefix, "/")}
	for _, p := range []string{strategy, runID, leaf} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// PowerAfterMessage is the payload published on the power_after topic.
type PowerAfterMessage struct {
	RunID       string    `json:"run_id"`
	Strategy    string    `json:"strategy"`
	Start       string    `json:"start"`
	StepSeconds float64   `json:"step_seconds"`
	PowerAfter  []float64 `json:"power_after"`
	Limits      []float64 `json:"limits,omitempty"`
}

// NewPowerAfterMessage builds the power_after payload for r.
func NewPowerAfterMessage(r *model.Result) (PowerAfterMessage, error) {
	if r == nil || r.Len() == 0 {
		return PowerAfterMessage{}, fmt.Errorf("%w: empty result", ErrPublish)
	}
	m := PowerAfterMessage{
		RunID:      r.RunID,
		Strategy:   r.Strategy,
		Start:      r.Time[0].Format(time.RFC3339),
		PowerAfter: r.PowerAfter,
		Limits:     r.BlockLimits,
	}
	if r.Len() > 1 {
		m.StepSeconds = r.Time[1].Sub(r.Time[0]).Seconds()
	} else {
		m.StepSeconds = model.DefaultStep.Seconds()
	}
	if m.Limits == nil && len(r.Limits) > 0 {
		m.Limits = r.Limits[:1]
	}
	return m, nil
}
