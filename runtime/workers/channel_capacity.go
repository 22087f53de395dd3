package workers

import (
	"chat-pipeline/contract"
	"context"
	"log/slog"
	"reflect"
	"time"
)

var _ contract.Worker = (*ChannelCapacityWorker)(nil)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the current channel capacity and length.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with other goroutines. A channel filled above the threshold is reported as a warning,
// it is the early sign of audit records about to be dropped.
type ChannelCapacityWorker struct {
	log              *slog.Logger
	channels         []NamedChannel
	metricInterval   time.Duration
	thresholdPercent int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	metricInterval time.Duration, thresholdPercent int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:              log,
		channels:         channels,
		metricInterval:   metricInterval,
		thresholdPercent: thresholdPercent,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reports every channel once and returns the ones above the threshold.
func (w *ChannelCapacityWorker) Sample() []string {
	var saturated []string
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		// Verify if this is a channel
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity := v.Cap()
		length := v.Len()
		if capacity == 0 {
			continue
		}
		percent := length * 100 / capacity
		if percent >= w.thresholdPercent {
			saturated = append(saturated, nc.Name)
			w.log.Warn("Channel filling up", "name", nc.Name, "length", length, "capacity", capacity, "percent", percent)
			continue
		}
		w.log.Debug("Channel capacity", "name", nc.Name, "length", length, "capacity", capacity)
	}
	return saturated
}
