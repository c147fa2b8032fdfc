package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/schidstorm/pdf-bot/pkg/logger"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"
)

var ErrConflict = errors.New("another instance is consuming updates for this bot")

// Consumer receives updates from the messaging service.
type Consumer interface {
	// ClearSubscription drops any other delivery registration so that this
	// instance can become the active consumer.
	ClearSubscription() error
	// Start blocks until Stop is called.
	Start()
	Stop()
}

type Controller struct {
	consumer  Consumer
	lifecycle chan error

	mutex    sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewController(consumer Consumer) *Controller {
	return &Controller{
		consumer:  consumer,
		lifecycle: make(chan error, 1),
	}
}

// IsConflict reports whether err means a second consumer took over.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "Conflict") || strings.Contains(msg, "(409)")
}

// Run consumes updates until ctx is done or a conflict is reported. It
// returns once every in-flight request has finished.
func (c *Controller) Run(ctx context.Context) error {
	log := logger.Logger(c)

	err := c.consumer.ClearSubscription()
	if err != nil {
		if IsConflict(err) {
			return errors.Join(ErrConflict, err)
		}
		return fmt.Errorf("clear subscription: %w", err)
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		log.Info("Consuming updates")
		c.consumer.Start()
		return nil
	})
	g.Go(func() error {
		var result error
		select {
		case <-ctx.Done():
			log.Info("Stopping")
		case result = <-c.lifecycle:
			log.WithError(result).Error("Lost the update subscription")
		}

		c.drain()
		c.consumer.Stop()
		return result
	})

	err = g.Wait()
	c.inflight.Wait()
	log.Info("All requests finished")

	return err
}

// ReportError receives errors from the transport. It never blocks, the
// poller calls it from its own loop.
func (c *Controller) ReportError(err error) {
	if !IsConflict(err) {
		logger.Logger(c).WithError(err).Warn("Transport error")
		return
	}

	select {
	case c.lifecycle <- errors.Join(ErrConflict, err):
	default:
	}
}

// Track runs fn as an in-flight request. It returns false without running
// fn once the controller is draining.
func (c *Controller) Track(fn func()) (ran bool) {
	if !c.begin() {
		return false
	}
	ran = true
	defer c.inflight.Done()

	defer func() {
		if r := recover(); r != nil {
			logger.Logger(c).WithField("recover", r).Error("Recovered")
		}
	}()

	fn()
	return ran
}

func (c *Controller) begin() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.draining {
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *Controller) drain() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.draining = true
}

func (c *Controller) Draining() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.draining
}
