package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/alerting"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// Dispatcher renders the applicable template and fans an alert out to its
// channels concurrently. One channel's failure never cancels or delays its
// siblings; every outcome is returned so the caller can audit them. No retry
// happens here.
type Dispatcher struct {
	registry       *Registry
	templates      *TemplateStore
	channelTimeout time.Duration
	logger         *logrus.Logger
	now            func() time.Time
}

func NewDispatcher(registry *Registry, templates *TemplateStore, channelTimeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if channelTimeout <= 0 {
		channelTimeout = 10 * time.Second
	}
	return &Dispatcher{
		registry:       registry,
		templates:      templates,
		channelTimeout: channelTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// SetNowFunc overrides the clock for deterministic tests.
func (d *Dispatcher) SetNowFunc(now func() time.Time) { d.now = now }

// Dispatch sends the alert to every channel ID given, concurrently, each
// bounded by the per-channel timeout. The result slice has exactly one entry
// per channel ID, in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, alert alerting.Alert, channelIDs []string) []alerting.DeliveryResult {
	results := make([]alerting.DeliveryResult, len(channelIDs))

	var wg sync.WaitGroup
	for i, id := range channelIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = d.deliverOne(ctx, alert, id)
		}(i, id)
	}
	wg.Wait()

	return results
}

// TestChannel delivers a canned alert through one channel and records the
// outcome on the channel record.
func (d *Dispatcher) TestChannel(ctx context.Context, id string) alerting.DeliveryResult {
	alert := alerting.Alert{
		ID:          "test",
		RuleName:    "Channel test",
		Metric:      "test_metric",
		Message:     "This is a test notification",
		Severity:    alerting.SeverityLow,
		Status:      alerting.StatusActive,
		TriggeredAt: d.now(),
	}
	result := d.deliverOne(ctx, alert, id)
	d.registry.MarkTested(id, result.Success)
	return result
}

func (d *Dispatcher) deliverOne(ctx context.Context, alert alerting.Alert, id string) alerting.DeliveryResult {
	start := d.now()
	fail := func(msg string) alerting.DeliveryResult {
		return alerting.DeliveryResult{
			ChannelID: id,
			Success:   false,
			Message:   msg,
			Elapsed:   d.now().Sub(start),
		}
	}

	ch, err := d.registry.GetChannel(id)
	if err != nil {
		return fail(err.Error())
	}
	if !ch.Enabled {
		res := fail("channel is disabled")
		res.ChannelType = string(ch.Type)
		return res
	}

	sender, ok := d.registry.Sender(ch.Type)
	if !ok {
		res := fail(fmt.Sprintf("no sender registered for type %s", ch.Type))
		res.ChannelType = string(ch.Type)
		return res
	}

	msg := RenderMessage(d.templates.FindFor(ch.Type), alert)

	ctx, cancel := context.WithTimeout(ctx, d.channelTimeout)
	defer cancel()

	err = sender.Deliver(ctx, alert, msg, ch)
	d.registry.MarkUsed(id)

	result := alerting.DeliveryResult{
		ChannelID:   id,
		ChannelType: string(ch.Type),
		Success:     err == nil,
		Elapsed:     d.now().Sub(start),
	}
	if err != nil {
		derr := errs.Wrap(errs.KindDelivery, id, err)
		result.Message = derr.Error()
		d.logger.WithError(derr).WithFields(logrus.Fields{
			"channel": id,
			"type":    ch.Type,
			"alert":   alert.ID,
		}).Warn("Notification delivery failed")
	} else {
		d.logger.WithFields(logrus.Fields{
			"channel": id,
			"type":    ch.Type,
			"alert":   alert.ID,
		}).Debug("Notification delivered")
	}
	return result
}
