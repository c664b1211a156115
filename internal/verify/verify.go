// Package verify выясняет судьбу операции, на которую не пришел ответ:
// упорядоченная цепочка стратегий до первой успешной.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	clientapi "github.com/iudanet/canvassync/internal/client/api"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/pkg/api"
)

//go:generate moq -out fetcher_mock.go . Fetcher
//go:generate moq -out requester_mock.go . StateRequester

// Fetcher чтение объектов через REST
type Fetcher interface {
	GetObject(ctx context.Context, canvasID, objectID string) (*api.Object, error)
	GetCanvasObjects(ctx context.Context, canvasID string) ([]api.Object, error)
}

// StateRequester запрос состояния объекта через поток событий
type StateRequester interface {
	IsConnected() bool
	Request(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error)
}

// Method способ, которым получен результат
type Method string

const (
	MethodDirectFetch   Method = "direct_fetch"
	MethodListScan      Method = "list_scan"
	MethodSocket        Method = "socket_verification"
	MethodReconstructed Method = "reconstructed"
	MethodFailed        Method = "failed"
)

// Имена стратегий
const (
	StrategyDirectFetch    = "direct_fetch"
	StrategyListScan       = "list_scan"
	StrategySocket         = "socket_verification"
	StrategyDelayedRetry   = "delayed_retry"
	StrategyReconstruction = "state_reconstruction"
	StrategyNotification   = "user_notification"
)

var (
	// ErrNotApplied сервер не отражает операцию
	ErrNotApplied = errors.New("operation is not reflected on the server")
	// ErrUnverified ни одна стратегия не подтвердила операцию
	ErrUnverified = errors.New("operation could not be verified")
)

// Outcome результат успешной стратегии
type Outcome struct {
	Object     *models.CanvasObject
	Method     Method
	Message    string
	Deleted    bool
	Unverified bool
}

// Strategy шаг цепочки проверки
type Strategy struct {
	CanApply func(update *models.OptimisticUpdate) bool
	Execute  func(ctx context.Context, update *models.OptimisticUpdate) (Outcome, error)
	Name     string
	Priority int
	// Timeout ограничивает шаг; 0 означает Config.StrategyTimeout
	Timeout time.Duration
	// Local шаг не обращается к сети и выполняется даже после общего таймаута
	Local bool
}

// Attempt запись о выполненной стратегии
type Attempt struct {
	Err      error
	Strategy string
	Elapsed  time.Duration
}

// Result итог проверки
type Result struct {
	Outcome
	Err      error
	Attempts []Attempt
	Elapsed  time.Duration
	Verified bool
}

// Observer получает телеметрию проверок
type Observer interface {
	ObserveVerification(method Method, elapsed time.Duration)
}

// Config параметры проверки
type Config struct {
	Timeout         time.Duration `yaml:"timeout"`
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay"`
}

// DefaultConfig общий таймаут 15s, шаг 5s, отложенный повтор min(1s*2^n, 5s)
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		StrategyTimeout: 5 * time.Second,
		RetryBaseDelay:  time.Second,
		RetryMaxDelay:   5 * time.Second,
	}
}

// Verifier выполняет цепочку стратегий
type Verifier struct {
	fetcher    Fetcher
	stream     StateRequester
	observer   Observer
	logger     *slog.Logger
	sleep      retry.Sleeper
	strategies []Strategy
	cfg        Config
}

// Option настройка Verifier
type Option func(*Verifier)

// WithSleeper подменяет ожидание отложенного повтора
func WithSleeper(s retry.Sleeper) Option {
	return func(v *Verifier) { v.sleep = s }
}

// WithObserver подключает телеметрию
func WithObserver(o Observer) Option {
	return func(v *Verifier) { v.observer = o }
}

// WithStrategies заменяет стандартную цепочку
func WithStrategies(strategies ...Strategy) Option {
	return func(v *Verifier) { v.strategies = strategies }
}

// New создает Verifier со стандартной цепочкой. stream может быть nil.
func New(cfg Config, fetcher Fetcher, stream StateRequester, logger *slog.Logger, opts ...Option) *Verifier {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = def.StrategyTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = def.RetryMaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{
		fetcher: fetcher,
		stream:  stream,
		logger:  logger,
		sleep:   retry.Wait,
		cfg:     cfg,
	}
	v.strategies = v.defaultStrategies()
	for _, opt := range opts {
		opt(v)
	}
	slices.SortStableFunc(v.strategies, func(a, b Strategy) int { return a.Priority - b.Priority })
	return v
}

// Strategies имена стратегий в порядке выполнения
func (v *Verifier) Strategies() []string {
	names := make([]string, 0, len(v.strategies))
	for _, s := range v.strategies {
		names = append(names, s.Name)
	}
	return names
}

// RetryDelay задержка отложенного повтора: min(base*2^retryCount, max)
func (v *Verifier) RetryDelay(retryCount int) time.Duration {
	d := v.cfg.RetryBaseDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= v.cfg.RetryMaxDelay {
			return v.cfg.RetryMaxDelay
		}
	}
	return min(d, v.cfg.RetryMaxDelay)
}

// Verify выполняет стратегии по порядку до первой успешной
func (v *Verifier) Verify(ctx context.Context, update *models.OptimisticUpdate) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	var res Result
	for _, s := range v.strategies {
		if s.CanApply != nil && !s.CanApply(update) {
			continue
		}
		if ctx.Err() != nil && !s.Local {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Err: ctx.Err()})
			continue
		}

		timeout := s.Timeout
		if timeout <= 0 {
			timeout = v.cfg.StrategyTimeout
		}
		parent := ctx
		if s.Local {
			parent = context.WithoutCancel(ctx)
		}
		stepCtx, stepCancel := context.WithTimeout(parent, timeout)
		stepStart := time.Now()
		outcome, err := v.execute(stepCtx, s, update)
		stepCancel()

		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Err: err, Elapsed: time.Since(stepStart)})
		if err != nil {
			v.logger.Debug("verification strategy failed",
				"strategy", s.Name,
				"update_id", update.ID,
				"object_id", update.ObjectID,
				"error", err)
			continue
		}

		res.Outcome = outcome
		res.Verified = outcome.Method != MethodFailed && !outcome.Unverified
		if outcome.Method == MethodFailed {
			res.Err = ErrUnverified
		}
		break
	}

	if res.Method == "" {
		res.Method = MethodFailed
		res.Err = ErrUnverified
	}
	res.Elapsed = time.Since(start)
	if v.observer != nil {
		v.observer.ObserveVerification(res.Method, res.Elapsed)
	}
	v.logger.Info("verification finished",
		"update_id", update.ID,
		"object_id", update.ObjectID,
		"method", res.Method,
		"verified", res.Verified,
		"elapsed", res.Elapsed)
	return res
}

// execute изолирует панику в стратегии
func (v *Verifier) execute(ctx context.Context, s Strategy, update *models.OptimisticUpdate) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	return s.Execute(ctx, update)
}

func isDelete(u *models.OptimisticUpdate) bool {
	return u.Type == models.UpdateDelete
}

func (v *Verifier) defaultStrategies() []Strategy {
	var strategies []Strategy
	if v.fetcher != nil {
		strategies = append(strategies,
			Strategy{Name: StrategyDirectFetch, Priority: 10, Execute: v.directFetch},
			Strategy{Name: StrategyListScan, Priority: 20, Execute: v.listScan},
		)
	}
	if v.stream != nil {
		strategies = append(strategies, Strategy{
			Name:     StrategySocket,
			Priority: 30,
			CanApply: func(*models.OptimisticUpdate) bool { return v.stream.IsConnected() },
			Execute:  v.socketVerify,
		})
	}
	if v.fetcher != nil {
		strategies = append(strategies, Strategy{
			Name:     StrategyDelayedRetry,
			Priority: 40,
			// ожидание входит в бюджет шага
			Timeout: v.cfg.RetryMaxDelay + v.cfg.StrategyTimeout,
			Execute: v.delayedRetry,
		})
	}
	strategies = append(strategies,
		Strategy{
			Name:     StrategyReconstruction,
			Priority: 50,
			Local:    true,
			CanApply: func(u *models.OptimisticUpdate) bool { return !isDelete(u) && u.Object != nil },
			Execute:  reconstruct,
		},
		Strategy{
			Name:     StrategyNotification,
			Priority: 60,
			Local:    true,
			Execute:  notify,
		},
	)
	return strategies
}

// directFetch GET объекта; для удаления успех - 404
func (v *Verifier) directFetch(ctx context.Context, u *models.OptimisticUpdate) (Outcome, error) {
	obj, err := v.fetcher.GetObject(ctx, u.CanvasID, u.ObjectID)
	if isDelete(u) {
		if clientapi.IsNotFound(err) {
			return Outcome{Method: MethodDirectFetch, Deleted: true}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("%w: object %s still exists", ErrNotApplied, u.ObjectID)
	}
	if err != nil {
		if clientapi.IsNotFound(err) {
			return Outcome{}, fmt.Errorf("%w: object %s not found", ErrNotApplied, u.ObjectID)
		}
		return Outcome{}, err
	}
	if obj.ID != u.ObjectID {
		return Outcome{}, fmt.Errorf("%w: got object %s", ErrNotApplied, obj.ID)
	}
	return Outcome{Method: MethodDirectFetch, Object: models.ObjectFromAPI(*obj)}, nil
}

// listScan ищет объект в списке холста
func (v *Verifier) listScan(ctx context.Context, u *models.OptimisticUpdate) (Outcome, error) {
	objects, err := v.fetcher.GetCanvasObjects(ctx, u.CanvasID)
	if err != nil {
		return Outcome{}, err
	}
	idx := slices.IndexFunc(objects, func(o api.Object) bool { return o.ID == u.ObjectID })
	if isDelete(u) {
		if idx < 0 {
			return Outcome{Method: MethodListScan, Deleted: true}, nil
		}
		return Outcome{}, fmt.Errorf("%w: object %s still listed", ErrNotApplied, u.ObjectID)
	}
	if idx < 0 {
		return Outcome{}, fmt.Errorf("%w: object %s not listed", ErrNotApplied, u.ObjectID)
	}
	return Outcome{Method: MethodListScan, Object: models.ObjectFromAPI(objects[idx])}, nil
}

// socketVerify object:verify -> object:state
func (v *Verifier) socketVerify(ctx context.Context, u *models.OptimisticUpdate) (Outcome, error) {
	requestID := uuid.NewString()
	ev, err := v.stream.Request(ctx, api.EventObjectVerify,
		api.VerifyRequest{RequestID: requestID, ObjectID: u.ObjectID},
		api.EventObjectState,
		func(ev api.Event) bool {
			var st api.ObjectState
			return ev.Decode(&st) == nil && st.RequestID == requestID
		})
	if err != nil {
		return Outcome{}, err
	}

	var state api.ObjectState
	if err := ev.Decode(&state); err != nil {
		return Outcome{}, err
	}
	if isDelete(u) {
		if !state.Exists {
			return Outcome{Method: MethodSocket, Deleted: true}, nil
		}
		return Outcome{}, fmt.Errorf("%w: object %s still exists", ErrNotApplied, u.ObjectID)
	}
	if !state.Exists || state.Object == nil {
		return Outcome{}, fmt.Errorf("%w: object %s does not exist", ErrNotApplied, u.ObjectID)
	}
	return Outcome{Method: MethodSocket, Object: models.ObjectFromAPI(*state.Object)}, nil
}

// delayedRetry ждет и повторяет прямой запрос
func (v *Verifier) delayedRetry(ctx context.Context, u *models.OptimisticUpdate) (Outcome, error) {
	if err := v.sleep(ctx, v.RetryDelay(u.RetryCount)); err != nil {
		return Outcome{}, err
	}
	return v.directFetch(ctx, u)
}

// reconstruct принимает кандидат как есть, без подтверждения
func reconstruct(_ context.Context, u *models.OptimisticUpdate) (Outcome, error) {
	return Outcome{
		Method:     MethodReconstructed,
		Object:     u.Object.Clone(),
		Unverified: true,
		Message:    "The change could not be confirmed by the server and is shown as unverified.",
	}, nil
}

// notify последний шаг: сообщение пользователю
func notify(_ context.Context, u *models.OptimisticUpdate) (Outcome, error) {
	return Outcome{
		Method: MethodFailed,
		Message: fmt.Sprintf("Could not confirm the %s of object %s. Check your connection and retry the change.",
			u.Type, u.ObjectID),
	}, nil
}
