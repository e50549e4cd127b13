package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	apihttp "smartgarden-cloud/internal/api/http"
	"smartgarden-cloud/internal/audit"
	"smartgarden-cloud/internal/auth"
	autowaterapp "smartgarden-cloud/internal/autowater/application"
	commandsapp "smartgarden-cloud/internal/commands/application"
	commandsevents "smartgarden-cloud/internal/commands/application/events"
	commands "smartgarden-cloud/internal/commands/domain"
	commandsmemory "smartgarden-cloud/internal/commands/infrastructure/memory"
	commandspostgres "smartgarden-cloud/internal/commands/infrastructure/postgres"
	commandshttp "smartgarden-cloud/internal/commands/interfaces/http"
	commandsmqtt "smartgarden-cloud/internal/commands/interfaces/mqtt"
	"smartgarden-cloud/internal/eventing"
	masterdataapp "smartgarden-cloud/internal/masterdata/application"
	masterdata "smartgarden-cloud/internal/masterdata/domain"
	masterdatamemory "smartgarden-cloud/internal/masterdata/infrastructure/memory"
	masterdatapostgres "smartgarden-cloud/internal/masterdata/infrastructure/postgres"
	masterdatahttp "smartgarden-cloud/internal/masterdata/interfaces/http"
	"smartgarden-cloud/internal/observability/metrics"
	telemetryapp "smartgarden-cloud/internal/telemetry/application"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
	"smartgarden-cloud/internal/telemetry/infrastructure/influx"
	telemetrymemory "smartgarden-cloud/internal/telemetry/infrastructure/memory"
	telemetrypostgres "smartgarden-cloud/internal/telemetry/infrastructure/postgres"
	telemetryhttp "smartgarden-cloud/internal/telemetry/interfaces/http"
	telemetrymqtt "smartgarden-cloud/internal/telemetry/interfaces/mqtt"
	thresholdsapp "smartgarden-cloud/internal/thresholds/application"
	thresholds "smartgarden-cloud/internal/thresholds/domain"
	thresholdsmemory "smartgarden-cloud/internal/thresholds/infrastructure/memory"
	thresholdspostgres "smartgarden-cloud/internal/thresholds/infrastructure/postgres"
	thresholdshttp "smartgarden-cloud/internal/thresholds/interfaces/http"
	"smartgarden-cloud/internal/transport/mqtt"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatalf("storage error: %v", err)
	}
	defer store.close()
	metrics.Init(store.db, logger)

	directory, err := masterdataapp.NewService(store.gardens, store.devices)
	if err != nil {
		logger.Fatalf("masterdata service error: %v", err)
	}
	thresholdService, err := thresholdsapp.NewService(store.thresholds, directory, nil)
	if err != nil {
		logger.Fatalf("threshold service error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	registerEventLog(bus, logger)

	tracker, err := commandsapp.NewPumpStateTracker(store.commands, nil, cfg.PumpLookback)
	if err != nil {
		logger.Fatalf("pump state tracker error: %v", err)
	}
	dispatcher, err := commandsapp.NewDispatcher(store.commands, directory, tracker,
		commandsapp.WithPublisher(bus), commandsapp.WithLogger(logger))
	if err != nil {
		logger.Fatalf("dispatcher error: %v", err)
	}
	locks := commandsapp.NewGardenLocks()
	pumpService, err := commandsapp.NewPumpService(dispatcher, locks, directory, thresholdService, cfg.PumpDefaultSeconds)
	if err != nil {
		logger.Fatalf("pump service error: %v", err)
	}
	queue, err := commandsapp.NewQueue(store.commands, directory, bus, nil, logger)
	if err != nil {
		logger.Fatalf("command queue error: %v", err)
	}
	controller, err := autowaterapp.NewController(thresholdService, tracker, dispatcher, locks, logger)
	if err != nil {
		logger.Fatalf("auto-water controller error: %v", err)
	}

	telemetryOpts := []telemetryapp.Option{telemetryapp.WithLogger(logger)}
	if cfg.influxEnabled() {
		mirror, err := influx.NewMirror(influx.Config{
			URL:             cfg.Influx.URL,
			Token:           cfg.Influx.Token,
			Org:             cfg.Influx.Org,
			Bucket:          cfg.Influx.Bucket,
			BreakerFailures: cfg.Influx.BreakerFailures,
			BreakerOpen:     cfg.Influx.BreakerOpen,
		})
		if err != nil {
			logger.Fatalf("influx mirror error: %v", err)
		}
		defer mirror.Close()
		telemetryOpts = append(telemetryOpts, telemetryapp.WithMirror(mirror))
		logger.Printf("influx mirror enabled: url=%s bucket=%s", cfg.Influx.URL, cfg.Influx.Bucket)
	}
	telemetryService, err := telemetryapp.NewService(store.readings, directory, directory, controller, telemetryOpts...)
	if err != nil {
		logger.Fatalf("telemetry service error: %v", err)
	}

	if cfg.MQTT.BrokerURL != "" {
		if err := startMQTT(ctx, cfg.MQTT, telemetryService, bus, logger); err != nil {
			logger.Fatalf("mqtt error: %v", err)
		}
	}

	handlers, err := buildHandlers(directory, thresholdService, pumpService, queue, telemetryService, store.pumpLogs, logger)
	if err != nil {
		logger.Fatalf("handler error: %v", err)
	}
	deviceKeys, err := auth.NewDeviceKeyMiddleware(directory, logger)
	if err != nil {
		logger.Fatalf("device key middleware error: %v", err)
	}
	policy := auth.NewDefaultPolicy(apihttp.ExemptPaths, nil)
	router, err := apihttp.NewRouter(handlers, auth.NewMiddleware([]byte(cfg.JWTSecret), policy), deviceKeys)
	if err != nil {
		logger.Fatalf("router error: %v", err)
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(router, logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()
	logger.Printf("http listening on %s storage=%s", cfg.HTTPAddr, cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

type storage struct {
	db         *sql.DB
	gardens    masterdata.GardenRepository
	devices    masterdata.DeviceRepository
	thresholds thresholds.Repository
	readings   telemetry.ReadingRepository
	commands   commands.Store
	pumpLogs   audit.Reader
}

func (s storage) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStorage(cfg config, logger *log.Logger) (storage, error) {
	if cfg.StorageDriver == storageMemory {
		logger.Printf("storage: in-memory, state is lost on restart")
		pumpLogs := audit.NewMemoryLog()
		store, err := commandsmemory.NewStore(pumpLogs)
		if err != nil {
			return storage{}, err
		}
		return storage{
			gardens:    masterdatamemory.NewGardenRepository(),
			devices:    masterdatamemory.NewDeviceRepository(),
			thresholds: thresholdsmemory.NewRepository(),
			readings:   telemetrymemory.NewReadingRepository(),
			commands:   store,
			pumpLogs:   pumpLogs,
		}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return storage{}, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return storage{}, err
	}
	store, err := commandspostgres.NewStore(db)
	if err != nil {
		_ = db.Close()
		return storage{}, err
	}
	return storage{
		db:         db,
		gardens:    masterdatapostgres.NewGardenRepository(db),
		devices:    masterdatapostgres.NewDeviceRepository(db),
		thresholds: thresholdspostgres.NewRepository(db),
		readings:   telemetrypostgres.NewReadingRepository(db),
		commands:   store,
		pumpLogs:   audit.NewRepository(db),
	}, nil
}

func startMQTT(ctx context.Context, cfg mqttConfig, ingester telemetrymqtt.Ingester, bus eventing.EventBus, logger *log.Logger) error {
	client, err := mqtt.Connect(ctx, mqtt.Config{
		BrokerURL: cfg.BrokerURL,
		Username:  cfg.Username,
		Password:  cfg.Password,
		ClientID:  cfg.ClientID,
	}, logger)
	if err != nil {
		return err
	}
	consumer, err := telemetrymqtt.NewConsumer(ingester, logger)
	if err != nil {
		return err
	}
	if err := mqtt.Subscribe(ctx, client, cfg.ReadingsTopic, 1, consumer.Handle, logger); err != nil {
		return err
	}
	publisher, err := mqtt.NewPublisher(client)
	if err != nil {
		return err
	}
	notifier, err := commandsmqtt.NewNotifier(publisher, cfg.CommandTemplate, logger)
	if err != nil {
		return err
	}
	notifier.Register(bus)
	return nil
}

func registerEventLog(bus eventing.EventBus, logger *log.Logger) {
	eventing.Subscribe(bus, "command-log", func(_ context.Context, event commandsevents.CommandIssued) error {
		logger.Printf("command issued: id=%s garden=%s device=%s action=%s by=%s",
			event.CommandID, event.GardenID, event.DeviceID, event.Action, event.InitiatedBy)
		return nil
	})
	eventing.Subscribe(bus, "command-log", func(_ context.Context, event commandsevents.CommandAcknowledged) error {
		logger.Printf("command acknowledged: id=%s garden=%s device=%s action=%s result=%s",
			event.CommandID, event.GardenID, event.DeviceID, event.Action, event.Result)
		return nil
	})
}

func buildHandlers(
	directory *masterdataapp.Service,
	thresholdService *thresholdsapp.Service,
	pumpService *commandsapp.PumpService,
	queue *commandsapp.Queue,
	telemetryService *telemetryapp.Service,
	pumpLogs audit.Reader,
	logger *log.Logger,
) (apihttp.Handlers, error) {
	var (
		h   apihttp.Handlers
		err error
	)
	if h.Gardens, err = masterdatahttp.NewGardenHandler(directory); err != nil {
		return h, err
	}
	if h.Devices, err = masterdatahttp.NewDeviceHandler(directory); err != nil {
		return h, err
	}
	if h.Thresholds, err = thresholdshttp.NewHandler(thresholdService); err != nil {
		return h, err
	}
	if h.Pump, err = commandshttp.NewPumpHandler(pumpService); err != nil {
		return h, err
	}
	if h.DeviceCommands, err = commandshttp.NewDeviceCommandsHandler(queue); err != nil {
		return h, err
	}
	if h.History, err = telemetryhttp.NewHistoryHandler(telemetryService); err != nil {
		return h, err
	}
	if h.Ingest, err = telemetryhttp.NewIngestHandler(telemetryService, logger); err != nil {
		return h, err
	}
	if h.PumpLogs, err = audit.NewHandler(pumpLogs); err != nil {
		return h, err
	}
	return h, nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
