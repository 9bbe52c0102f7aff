package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/admission"
	"dispatch-and-delivery/internal/breaker"
	"dispatch-and-delivery/internal/cache"
	"dispatch-and-delivery/internal/config"
	"dispatch-and-delivery/internal/dispatch"
	"dispatch-and-delivery/internal/metrics"
	"dispatch-and-delivery/internal/models"
	"dispatch-and-delivery/internal/notify"
	"dispatch-and-delivery/internal/scheduler"
	"dispatch-and-delivery/internal/spatial"
	"dispatch-and-delivery/internal/statusapi"
	"dispatch-and-delivery/internal/store"
	"dispatch-and-delivery/internal/threat"
)

// deployment holds every wired component cmd/dispatchd's subcommands
// operate against, and the raw connections they were built from so
// Close can tear them down cleanly.
type deployment struct {
	cfg *config.Config
	log *zap.SugaredLogger

	pg    *pgxpool.Pool
	rdb   *redis.Client
	mongo *mongo.Client

	metrics    *metrics.Meter
	adaptive   *cache.AdaptiveCache
	spatialIdx *spatial.Index
	breaker    *breaker.Breaker
	admission  *admission.Admission
	threatM    *threat.Meter
	notifier   *notify.Facade
	scheduler  *scheduler.Scheduler
	orch       *dispatch.Orchestrator
	status     *statusapi.Server
}

func newDeployment(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*deployment, error) {
	pg, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	driverCollection := mongoClient.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)

	d := &deployment{cfg: cfg, log: log, pg: pg, rdb: rdb, mongo: mongoClient}

	perfStore := store.NewPerformanceStore(pg)
	prefStore := store.NewPreferenceStore(pg)
	deviceStore := store.NewDeviceStore(pg)
	activityStore := store.NewActivityStore(pg)
	ipReputation := store.NewIpReputation(rdb, cfg.RedisIPBlockKey)
	auditSink := store.NewAuditSink(rdb, cfg.RedisAuditKey, cfg.RedisAuditMax)
	driverSource := store.NewDriverSource(driverCollection)

	d.notifier = buildNotifier(ctx, cfg, auditSink, log)

	d.metrics = metrics.New(cfg.ResponseTimeAlertMs, cfg.MemoryAlertBytes, cfg.HeapLimitBytes,
		func(ctx context.Context, op string, sample models.MetricSample) {
			d.alertOperator(ctx, "performance", fmt.Sprintf("slow/erroring op %s", op), models.SeverityNormal,
				models.ChannelEmail, models.ChannelChat)
			_ = auditSink.AppendAudit(ctx, "performance_alerts", sample)
		}, log)

	d.adaptive = cache.NewAdaptive(log)
	d.spatialIdx = spatial.New(cfg.SpatialGridDegrees)
	d.breaker = breaker.New(breaker.Config{
		MaxFailures: cfg.CircuitMaxFailures, ResetTimeout: cfg.CircuitResetTimeout,
		Retries: cfg.CircuitRetries, BaseDelay: cfg.CircuitBaseDelay,
	}, log)

	d.admission = admission.New(admission.Limits{
		ActiveDispatch: cfg.ResourceLimitActiveDispatch, HeapBytes: cfg.ResourceLimitHeapBytes,
		CPUPercent: cfg.ResourceLimitCPUPercent, DBConns: cfg.ResourceLimitDBConns,
	}, func(ctx context.Context, t models.ResourceType, current, limit, requested int64) {
		d.alertOperator(ctx, "resources", fmt.Sprintf("resource %s exhausted: %d/%d (requested %d)", t, current, limit, requested), models.SeverityCritical)
		_ = auditSink.AppendAudit(ctx, "resource_alerts", map[string]any{"type": t, "current": current, "limit": limit, "requested": requested})
	}, func(ctx context.Context) {
		log.Infow("admission: prioritizing high-value pending orders under resource pressure")
	}, log)
	d.admission.RegisterCleanup(d.adaptive.Clear)
	d.admission.RegisterCleanup(d.spatialIdx.Clear)

	d.threatM = threat.New(threat.ActionThresholds{
		Low: cfg.ThreatLowThreshold, Medium: cfg.ThreatMediumThreshold,
		High: cfg.ThreatHighThreshold, Suspended: cfg.ThreatSuspendedThreshold,
	}, ipReputation, deviceStore, func(ctx context.Context, subject, activity string, result models.ThreatResult, severity models.Severity, tctx models.ThreatContext) {
		_ = auditSink.AppendAudit(ctx, "security_incidents", map[string]any{
			"subject": subject, "activity": activity, "score": result.Score, "level": result.Level,
		})
	}, func(ctx context.Context, subject string, severity models.Severity, channels []models.Channel) {
		d.alertOperator(ctx, "threat", fmt.Sprintf("subject %s crossed a threat threshold", subject), severity)
	}, log)
	d.threatM.SetActivitySource(activityStore)
	d.threatM.SetAuditFunc(func(ctx context.Context, subject, activity string, result models.ThreatResult, factors map[string]float64, at time.Time) {
		_ = auditSink.AppendAudit(ctx, "fraud_scores", map[string]any{
			"subject": subject, "activity": activity, "score": result.Score,
			"factors": factors, "level": result.Level, "instant": at,
		})
	})

	d.orch = dispatch.New(driverSource, prefStore, perfStore, d.adaptive, d.spatialIdx, d.breaker, d.admission, d.threatM,
		func(ctx context.Context, driverID string, order models.Order) {
			log.Infow("dispatch winner notified", "driver", driverID, "order", order.ID)
		},
		d.metrics.Measure,
		log,
	)

	d.scheduler = scheduler.New(scheduler.Config{
		MaxConcurrentJobs: cfg.SchedulerMaxConcurrentJobs, Tick: cfg.SchedulerTick,
	}, log)
	if err := scheduler.InstallSystemJobs(d.scheduler, d.systemJobHandlers(auditSink)); err != nil {
		return nil, fmt.Errorf("install system jobs: %w", err)
	}

	d.status = statusapi.New(d.metrics, d.spatialIdx, d.admission, d.breaker, d.scheduler, d.adaptive, d.threatM,
		cfg.AdminUser, cfg.AdminHash, cfg.JWTSecret)
	d.status.Echo().Use(middleware.CORS())
	d.status.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if err := d.metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warnw("prometheus registration failed", "error", err)
	}

	return d, nil
}

// buildNotifier wires whichever channel adapters the config carries
// addresses/credentials for; a deployment that only sets a webhook
// secret still gets working webhook alerts without SES or an OAuth2
// push gateway configured.
func buildNotifier(ctx context.Context, cfg *config.Config, auditSink store.AuditSinkInterface, log *zap.SugaredLogger) *notify.Facade {
	adapters := make(map[models.Channel]notify.ChannelAdapter)

	if cfg.NotifySESFromAddress != "" {
		if awsCfg, err := awsconfig.LoadDefaultConfig(ctx); err == nil {
			adapters[models.ChannelEmail] = notify.NewEmailAdapter(sesv2.NewFromConfig(awsCfg), cfg.NotifySESFromAddress)
		} else {
			log.Warnw("ses config load failed, email channel disabled", "error", err)
		}
	}
	if cfg.NotifyPushEndpoint != "" {
		adapters[models.ChannelPush] = notify.NewPushAdapter(ctx, cfg.NotifyPushTokenURL, cfg.NotifyPushClientID, cfg.NotifyPushClientSecret, cfg.NotifyPushEndpoint)
	}
	if cfg.NotifyWebhookSecret != "" {
		adapters[models.ChannelWebhook] = notify.NewWebhookAdapter([]byte(cfg.NotifyWebhookSecret), http.DefaultClient)
	}

	return notify.New(adapters, func(ctx context.Context, entry models.NotificationLog) {
		_ = auditSink.AppendAudit(ctx, "notification_logs", entry)
	}, log)
}

// alertOperator fans a system alert out to the configured operator
// recipient on the given channels, or, when none are given, across
// whatever channels both the recipient and the severity call for. A
// recipient with no addresses configured still produces an audit log
// entry via notifier.Send's own bookkeeping.
func (d *deployment) alertOperator(ctx context.Context, title, body string, severity models.Severity, channels ...models.Channel) {
	recipient := models.Recipient{
		ID: "operator", Role: "admin",
		Email: d.cfg.OperatorEmail, ChatID: d.cfg.OperatorChatID, WebhookURL: d.cfg.OperatorWebhookURL,
	}
	if len(channels) == 0 {
		channels = notify.OptimalChannels(recipient, severity)
	}
	if err := d.notifier.Send(ctx, recipient, title, body, severity, channels); err != nil {
		d.log.Errorw("operator alert send failed", "title", title, "error", err)
	}
}

func (d *deployment) Close(ctx context.Context) {
	d.pg.Close()
	_ = d.rdb.Close()
	_ = d.mongo.Disconnect(ctx)
}
