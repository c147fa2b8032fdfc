package bot

import (
	"context"
	"net/http"

	"github.com/schidstorm/pdf-bot/pkg/convert"
	"github.com/schidstorm/pdf-bot/pkg/fonts"
	"github.com/schidstorm/pdf-bot/pkg/logger"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/render"
	"github.com/schidstorm/pdf-bot/pkg/scratch"
	tele "gopkg.in/telebot.v4"
)

type Server struct {
	options    Options
	area       *scratch.Area
	fonts      *fonts.Locator
	dispatcher *Dispatcher
	controller *Controller
	bot        *tele.Bot
}

// NewServer builds the conversion pipeline and connects to the bot API.
// It fails when the token is rejected.
func NewServer(opts Options) (*Server, error) {
	s := &Server{
		options: opts,
	}

	engine, err := ocr.NewEngine(opts.Ocr)
	if err != nil {
		return nil, err
	}

	s.area = scratch.NewArea(opts.Scratch)
	s.fonts = fonts.NewLocator(opts.Fonts)
	converter := convert.NewConverter(
		s.area,
		ocr.NewAdapter(engine, opts.Ocr.Languages),
		s.fonts,
		render.NewRenderer(opts.Render),
		opts.Convert,
	)
	s.dispatcher = NewDispatcher(converter).WithMaxFileSize(opts.MaxFileSize)

	settings := tele.Settings{
		Token:   opts.Token,
		Client:  &http.Client{Timeout: opts.HttpTimeout},
		OnError: s.onError,
	}
	if opts.WebhookMode() {
		settings.Poller = &tele.Webhook{
			Listen:   ":" + opts.Webhook.Port,
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.PublicURL},
		}
	} else {
		if opts.Webhook.Port != "" {
			logger.Logger(s).WithField("port", opts.Webhook.Port).Warn("PORT is set without WEBHOOK_URL, polling for updates")
		}
		settings.Poller = &UpdatePoller{
			Timeout:        opts.PollTimeout,
			AllowedUpdates: []string{"message"},
			OnError:        s.reportError,
		}
	}

	s.bot, err = tele.NewBot(settings)
	if err != nil {
		return nil, err
	}

	s.controller = NewController(&telegramConsumer{bot: s.bot, webhook: opts.WebhookMode()})

	s.bot.Use(s.track)
	for _, endpoint := range []string{"/start", "/help", tele.OnText, tele.OnPhoto, tele.OnDocument} {
		s.bot.Handle(endpoint, s.handle)
	}

	return s, nil
}

func (s *Server) reportError(err error) {
	if s.controller != nil {
		s.controller.ReportError(err)
	}
}

func (s *Server) onError(err error, c tele.Context) {
	if c == nil {
		s.reportError(err)
		return
	}
	logger.Logger(s).WithError(err).Error("Handler failed")
}

func (s *Server) track(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		var err error
		ok := s.controller.Track(func() {
			err = next(c)
		})
		if !ok {
			logger.Logger(s).Debug("Dropped update while draining")
		}
		return err
	}
}

func (s *Server) handle(c tele.Context) error {
	s.dispatcher.Dispatch(context.Background(), messageFromTelegram(c.Message()), telegramConversation{bot: s.bot, c: c})
	return nil
}

// Run serves until ctx is done or another instance takes over.
func (s *Server) Run(ctx context.Context) error {
	log := logger.Logger(s)

	if s.options.SweepAfter > 0 {
		removed, err := s.area.Sweep(s.options.SweepAfter)
		if err != nil {
			log.WithError(err).Warn("Failed to sweep scratch area")
		} else if removed > 0 {
			log.WithField("removed", removed).Info("Removed stale scratch files")
		}
	}

	// probe once up front so the first request does not pay for it
	s.fonts.TryLoad()

	if s.options.WatchFonts {
		go func() {
			if err := s.fonts.Watch(ctx); err != nil {
				log.WithError(err).Warn("Font watcher stopped")
			}
		}()
	}

	log.WithField("bot", s.bot.Me.Username).WithField("webhook", s.options.WebhookMode()).Info("Started")
	return s.controller.Run(ctx)
}
