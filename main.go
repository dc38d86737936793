package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pion/mdns/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"growrack/auth"
	"growrack/internal/automation"
	"growrack/internal/cache"
	"growrack/internal/config"
	"growrack/internal/db"
	"growrack/internal/ingest"
	"growrack/internal/logging"
	"growrack/internal/message"
	"growrack/internal/mqtt"
	"growrack/internal/realtime"
	"growrack/internal/scheduler"
	"growrack/internal/taskqueue"
	"growrack/internal/web"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Root().Fatal().Err(err).Msg("failed to load config")
	}
	if err := logging.Init(cfg.Log); err != nil {
		logging.Root().Fatal().Err(err).Msg("failed to init logging")
	}
	log := logging.WithComponent("main")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	database, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	live := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := live.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer live.Close()

	sessions := auth.NewRedisSessions(live.Client())
	authSvc := auth.NewService(database, sessions, cfg.JWT.Secret,
		time.Duration(cfg.JWT.TTLMinutes)*time.Minute)

	hub := realtime.NewHub(authSvc, database)

	connector := mqtt.NewConnector(cfg.MQTT)
	engine := automation.NewEngine(database, connector, hub)

	router := ingest.NewRouter(
		ingest.NewTelemetryProcessor(database, live, hub, engine),
		ingest.NewStatusProcessor(database, live, hub),
		ingest.NewErrorProcessor(database, live, hub),
	)
	connector.OnMessage(router.Dispatch)
	for _, class := range []message.Class{message.ClassSensors, message.ClassStatus, message.ClassErrors} {
		if err := connector.Subscribe(message.InboundWildcard(cfg.MQTT.Namespace, class)); err != nil {
			log.Fatal().Err(err).Str("class", string(class)).Msg("failed to register rack subscription")
		}
	}
	if err := connector.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MQTT broker")
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queue := taskqueue.NewClient(redisOpt)
	worker := taskqueue.NewWorker(redisOpt, database, live, hub)
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start task workers")
	}

	sched := scheduler.New()
	registerJobs(sched, queue, cfg.Jobs, log)
	sched.Start()

	server := web.NewServer(cfg.App.Port, web.Deps{
		DB:     database,
		Cache:  live,
		Auth:   authSvc,
		Hub:    hub,
		Broker: connector,
	})
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	if cfg.MDNS.Enabled {
		go announceMDNS(cfg.MDNS.LocalName, log)
	}

	log.Info().Int("port", cfg.App.Port).Str("namespace", cfg.MQTT.Namespace).Msg("growrack is up")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
	sched.Stop()
	worker.Stop()
	queue.Close()
	hub.Close()
	connector.Close()
	log.Info().Msg("shutdown complete")
}

// registerJobs schedules the periodic enqueues. The heavy lifting runs
// on the asynq workers so a slow sweep never stalls the cron loop.
func registerJobs(sched *scheduler.Scheduler, queue *taskqueue.Client, jobs config.JobsConfig, log zerolog.Logger) {
	offlineAfter := time.Duration(jobs.OfflineAfterSecs) * time.Second
	if err := sched.AddJob("liveness_sweep", jobs.LivenessCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue.EnqueueLivenessSweep(ctx, offlineAfter); err != nil {
			log.Error().Err(err).Msg("failed to enqueue liveness sweep")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule liveness sweep")
	}

	if err := sched.AddJob("retention_prune", jobs.RetentionCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue.EnqueueRetentionPrune(ctx, jobs.RetentionDays); err != nil {
			log.Error().Err(err).Msg("failed to enqueue retention prune")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule retention prune")
	}
}

// announceMDNS registers the backend under a .local name so racks on
// the same network can discover the broker-facing host without static
// configuration.
func announceMDNS(localName string, log zerolog.Logger) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve UDP4 address for mDNS")
		return
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve UDP6 address for mDNS")
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Error().Err(err).Msg("failed to listen on UDP4 for mDNS")
		return
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Error().Err(err).Msg("failed to listen on UDP6 for mDNS")
		return
	}

	if _, err := mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	}); err != nil {
		log.Error().Err(err).Msg("failed to start mDNS responder")
		return
	}
	log.Info().Str("local_name", localName).Msg("mDNS responder announcing")
}
