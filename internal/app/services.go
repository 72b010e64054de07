package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/delihood/client/internal/auth"
	"github.com/delihood/client/internal/config"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/order"
	"github.com/delihood/client/internal/protocol"
	"github.com/delihood/client/internal/realtime"
	"github.com/delihood/client/internal/ui/components"
	"github.com/delihood/client/internal/ui/tracking"
)

const credentialsFile = "credentials.enc"

// Services holds every long-lived component of a session against one
// profile. They are constructed once in Build and passed explicitly.
type Services struct {
	Profile     *interfaces.Profile
	Tokens      *auth.Manager
	Client      *protocol.Client
	Channel     *realtime.Channel
	Store       *order.Store
	Orders      *order.Service
	Tracker     *order.Tracker
	Poller      *order.Poller
	Bridge      *tracking.ProgramBridge
	Highlighter *components.SyntaxHighlighter

	logger *logging.Logger
	cancel context.CancelFunc
}

// BuildOptions overrides parts of the default wiring
type BuildOptions struct {
	// Storage replaces the encrypted credentials file
	Storage auth.SecureStorage

	// HTTPClient is used for the activity webhook
	HTTPClient *http.Client
}

// Build wires the services for profile in dependency order: token store,
// request client, realtime channel, order store, order service, then the
// tracker and poller driving it.
func Build(profile *interfaces.Profile, opts BuildOptions) (*Services, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}
	logger := logging.GetGlobalLogger().WithComponent("app")

	storage := opts.Storage
	if storage == nil {
		var err error
		storage, err = defaultStorage()
		if err != nil {
			return nil, err
		}
	}

	tokens, err := auth.NewManager(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}

	client, err := protocol.NewClient(profile.BaseURL, tokens,
		protocol.WithTimeout(profile.RequestTimeout),
		protocol.WithLogger(logging.GetProtocolLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize request client: %w", err)
	}

	channel := realtime.NewChannel(profile.RealtimeURL,
		realtime.WithTokenSource(tokens.AccessToken),
		realtime.WithReconnectPolicy(realtime.ReconnectPolicy{
			MaxAttempts: profile.Reconnect.MaxAttempts,
			Delay:       profile.Reconnect.Delay,
		}),
		realtime.WithLogger(logging.GetRealtimeLogger()))

	bridge := &tracking.ProgramBridge{}
	notifiers := order.MultiNotifier{bridge}
	if profile.ActivityWebhook != "" {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 10 * time.Second}
		}
		notifiers = append(notifiers, order.NewWebhookNotifier(profile.ActivityWebhook, httpClient))
	}

	store := order.NewStore(
		order.WithPolicy(order.ParsePolicy(profile.OrderingPolicy)),
		order.WithStoreLogger(logging.GetOrderLogger()))

	service := order.NewService(client, store,
		order.WithChannel(channel),
		order.WithNotifier(notifiers),
		order.WithServiceLogger(logging.GetOrderLogger()))

	services := &Services{
		Profile:     profile,
		Tokens:      tokens,
		Client:      client,
		Channel:     channel,
		Store:       store,
		Orders:      service,
		Tracker:     order.NewTracker(channel, service),
		Bridge:      bridge,
		Highlighter: components.NewSyntaxHighlighter(profile.Theme, "terminal256"),
		logger:      logger,
		cancel:      func() {},
	}
	services.Poller = order.NewPoller(service, profile.PollInterval, bridge.PollFailed)

	logger.Info("Services initialized",
		"profile", profile.Name,
		"base_url", profile.BaseURL,
		"policy", string(store.Policy()))
	return services, nil
}

func defaultStorage() (auth.SecureStorage, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine data directory: %w", err)
	}
	keyPath, err := config.DefaultKeyPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine key path: %w", err)
	}
	security, err := config.NewSecurityManager(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	storage, err := auth.NewFileSecureStorage(filepath.Join(dataDir, credentialsFile), security)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	return storage, nil
}

// StartTracking connects the realtime channel and starts polling. A poll
// interval below zero disables polling.
func (s *Services) StartTracking(ctx context.Context) error {
	s.StopTracking()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.Tracker.Start(ctx)
	if s.Profile.PollInterval > 0 {
		if err := s.Poller.Start(ctx); err != nil {
			cancel()
			s.Tracker.Stop()
			return fmt.Errorf("failed to start polling: %w", err)
		}
	}
	s.logger.Debug("Order tracking started")
	return nil
}

// StopTracking stops polling, unregisters the realtime handlers and closes
// the connection
func (s *Services) StopTracking() {
	s.cancel()
	s.cancel = func() {}
	s.Poller.Stop()
	s.Tracker.Stop()
	s.Channel.Disconnect()
}

// Close stops tracking and the order store
func (s *Services) Close() {
	s.StopTracking()
	s.Store.Close()
}
