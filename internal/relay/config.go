package relay

import (
	"fmt"
	"os"

	"github.com/fleethub-io/fleethub/internal/relay/core"
	"github.com/fleethub-io/fleethub/internal/relay/core/service"
	"github.com/fleethub-io/fleethub/internal/relay/notifier"
	"github.com/fleethub-io/fleethub/internal/relay/server"
	httpserver "github.com/fleethub-io/fleethub/internal/relay/server/http"
	mqttserver "github.com/fleethub-io/fleethub/internal/relay/server/mqtt"
	"github.com/fleethub-io/fleethub/internal/relay/storage/sqlite"
	"github.com/fleethub-io/fleethub/pkg/log"
	"github.com/fleethub-io/fleethub/pkg/mqtt"
	"github.com/fleethub-io/fleethub/pkg/options"
)

// Config aggregates the option groups the relay needs.
type Config struct {
	HttpOptions     *options.HttpOptions
	MqttOptions     *options.MqttOptions
	StoreOptions    *options.StoreOptions
	ExchangeOptions *options.ExchangeOptions
}

// NewRelayServer wires the adapters around the exchange core.
func (cfg *Config) NewRelayServer() (*RelayServer, error) {
	// 1. Infrastructure: the durable message log (secondary adapter).
	store, err := sqlite.Open(cfg.StoreOptions.Path, log.Std().WithName("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}

	// 2. Infrastructure: broker client, shared by the status ingress and
	// the command notifier. MQTT is optional; without a broker the relay
	// is HTTP-only and command delivery relies on long-polling.
	var (
		mqttClient      mqtt.Client
		notifierAdapter core.CommandNotifier
	)
	if cfg.MqttOptions.Enabled() {
		mqttClient, err = initializeMQTTClient(cfg.MqttOptions)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		notifierAdapter = notifier.NewMqttNotifier(mqttClient, cfg.MqttOptions.TopicRoot, log.Std().WithName("notifier"))
	}

	// 3. Core domain service, with all secondary adapters injected.
	svc := service.New(store, notifierAdapter, service.Config{
		StatusWaitTimeout:  cfg.ExchangeOptions.StatusWaitTimeout,
		CommandWaitTimeout: cfg.ExchangeOptions.CommandWaitTimeout,
		CarWaitTimeout:     cfg.ExchangeOptions.CarWaitTimeout,
		RetentionWindow:    cfg.StoreOptions.Retention,
		SweepInterval:      cfg.StoreOptions.SweepInterval,
	}, log.Std().WithName("exchange"))

	// A store restart invalidates every view derived from the log.
	store.OnRestart(svc.ResetState)

	// 4. Ingress servers (primary adapters).
	servers := []server.Server{
		httpserver.NewServer(cfg.HttpOptions, svc, store, log.Std().WithName("http")),
	}
	if cfg.MqttOptions.Enabled() {
		servers = append(servers,
			mqttserver.NewServer(mqttClient, svc, cfg.MqttOptions.TopicRoot, log.Std().WithName("mqtt")))
	}

	return &RelayServer{
		serverManager: server.NewManager(servers...),
		svc:           svc,
		store:         store,
	}, nil
}

func initializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	clientCfg := opts.ToClientConfig()

	if clientCfg.ClientID == "" {
		hostname, _ := os.Hostname()
		clientCfg.ClientID = fmt.Sprintf("fhub-relay-%s", hostname)
	}

	return mqtt.NewClient(clientCfg)
}
