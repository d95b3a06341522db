package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrEngineStopped движок завершил работу и команды больше не принимает
var ErrEngineStopped = errors.New("игровой движок остановлен")

// ErrCommandFailed обработка команды завершилась паникой владельца
var ErrCommandFailed = errors.New("команда движка прервана паникой")

const (
	inboxSize  = 256
	eventQueue = 1024
)

// EventPublisher получатель доменных событий (обычно eventbus.EventBus).
type EventPublisher interface {
	Publish(ctx context.Context, ev *eventbus.Envelope) error
}

// Options параметры движка. Часы и генератор случайных чисел передаются
// явно, чтобы тесты были детерминированными.
type Options struct {
	Tuning    Tuning
	Clock     Clock      // По умолчанию монотонные часы
	Rand      *rand.Rand // По умолчанию от текущего времени
	Publisher EventPublisher
	Metrics   *Metrics
	Logger    *logging.Logger
}

// outcome ответ владельца на команду
type outcome[T any] struct {
	val T
	err error
}

// replyTo канал ответа с буфером 1: владелец никогда не блокируется на нём.
type replyTo[T any] chan outcome[T]

func newReply[T any]() replyTo[T] { return make(replyTo[T], 1) }

func (r replyTo[T]) ok(v T) { r <- outcome[T]{val: v} }

func (r replyTo[T]) fail(err error) {
	select {
	case r <- outcome[T]{err: err}:
	default:
	}
}

// awaiting команда, отправитель которой ждёт ответа
type awaiting interface {
	fail(err error)
}

// Команды входящей очереди
type (
	addPlayerCmd struct {
		id, name string
		reply    replyTo[bool]
	}
	removePlayerCmd struct {
		id    string
		reply replyTo[bool]
	}
	setInputsCmd struct {
		id     string
		inputs map[string]bool
	}
	fireCmd struct {
		id     string
		target mgl64.Vec2
	}
	reviveCmd struct {
		id    string
		reply replyTo[bool]
	}
	snapshotCmd struct {
		reply replyTo[Snapshot]
	}
	statsCmd struct {
		reply replyTo[Stats]
	}
)

func (c addPlayerCmd) fail(err error)    { c.reply.fail(err) }
func (c removePlayerCmd) fail(err error) { c.reply.fail(err) }
func (c reviveCmd) fail(err error)       { c.reply.fail(err) }
func (c snapshotCmd) fail(err error)     { c.reply.fail(err) }
func (c statsCmd) fail(err error)        { c.reply.fail(err) }

// Engine ведёт симуляцию с фиксированным шагом. Всё игровое состояние
// принадлежит горутине Run; обработчики запросов и рассылка общаются с
// ней только командами через inbox.
type Engine struct {
	world     *World
	tuning    Tuning
	clock     Clock
	publisher EventPublisher
	metrics   *Metrics
	log       *logging.Logger

	inbox  chan any
	events chan Event

	stopOnce sync.Once
	stopped  chan struct{}

	// Поля ниже трогает только владелец
	lastTick         time.Duration
	started          bool
	lastTickDuration time.Duration
	overruns         uint64
}

// NewEngine создаёт движок. Run нужно запустить отдельно.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Tuning.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = NewMonotonicClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGameLogger()
	}

	world := NewWorld(opts.Tuning, opts.Rand)
	world.log = opts.Logger

	return &Engine{
		world:     world,
		tuning:    opts.Tuning,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		inbox:     make(chan any, inboxSize),
		events:    make(chan Event, eventQueue),
		stopped:   make(chan struct{}),
	}, nil
}

// PlayAreaDimensions размер арены; константа, читается без обращения к владельцу.
func (e *Engine) PlayAreaDimensions() mgl64.Vec2 { return e.tuning.ArenaSize }

// Tuning константы движка
func (e *Engine) Tuning() Tuning { return e.tuning }

// Run крутит цикл симуляции до отмены ctx. Паника внутри тика не
// перехватывается здесь: её ловит супервизор и перезапускает Run, при
// этом состояние мира сохраняется.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tuning.TickPeriod())
	defer ticker.Stop()

	quit := make(chan struct{})
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		e.pumpEvents(ctx, quit)
	}()
	defer func() {
		close(quit)
		<-pumpDone
	}()

	// После перезапуска дельта считается от момента старта, а не от
	// тика, на котором случилась паника.
	e.lastTick = e.clock.Now()
	e.started = true
	e.log.Info("Симуляция запущена: %d тиков/с, арена %.0fx%.0f",
		e.tuning.TickRate, e.tuning.ArenaSize[0], e.tuning.ArenaSize[1])

	for {
		select {
		case <-ctx.Done():
			e.stop()
			e.log.Info("Симуляция остановлена на тике %d", e.world.tick)
			return nil
		case cmd := <-e.inbox:
			e.handleCommand(cmd)
			e.flushEvents()
		case <-ticker.C:
			e.Step()
			e.flushEvents()
		}
	}
}

// Step выполняет один тик с дельтой, измеренной по часам движка.
// Вызывать только из владельца (Run) или из теста без запущенного Run.
func (e *Engine) Step() StepResult {
	now := e.clock.Now()
	if !e.started {
		e.lastTick = now
		e.started = true
	}
	delta := (now - e.lastTick).Seconds()
	if delta < 0 {
		delta = 0
	}
	e.lastTick = now

	result := e.world.Step(now, delta)

	took := e.clock.Now() - now
	e.lastTickDuration = took
	overrun := took > e.tuning.TickPeriod()
	if overrun {
		e.overruns++
		e.log.Warn("Тик %d занял %v (период %v)", result.Tick, took, e.tuning.TickPeriod())
	}
	e.metrics.observeStep(result, took, overrun)
	return result
}

// handleCommand исполняет команду. При панике ожидающий отправитель
// получает ErrCommandFailed, а сама паника уходит дальше к супервизору.
func (e *Engine) handleCommand(cmd any) {
	defer func() {
		if r := recover(); r != nil {
			if w, ok := cmd.(awaiting); ok {
				w.fail(fmt.Errorf("%w: %v", ErrCommandFailed, r))
			}
			panic(r)
		}
	}()

	switch c := cmd.(type) {
	case addPlayerCmd:
		_, added := e.world.AddPlayer(c.id, c.name)
		e.metrics.setPlayers(e.world.PlayerCount())
		c.reply.ok(added)
	case removePlayerCmd:
		removed := e.world.RemovePlayer(c.id)
		e.metrics.setPlayers(e.world.PlayerCount())
		c.reply.ok(removed)
	case setInputsCmd:
		e.world.SetInputs(c.id, c.inputs)
	case fireCmd:
		e.world.Fire(c.id, c.target)
	case reviveCmd:
		c.reply.ok(e.world.Revive(c.id))
	case snapshotCmd:
		c.reply.ok(e.world.Snapshot())
	case statsCmd:
		stats := e.world.Stats()
		stats.LastTickDuration = e.lastTickDuration
		stats.Overruns = e.overruns
		c.reply.ok(stats)
	default:
		e.log.Warn("Неизвестная команда движка %T", cmd)
	}
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.stopped) })
}

func (e *Engine) send(ctx context.Context, cmd any) error {
	select {
	case <-e.stopped:
		return ErrEngineStopped
	default:
	}
	select {
	case e.inbox <- cmd:
		return nil
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func request[T any](ctx context.Context, e *Engine, cmd any, reply replyTo[T]) (T, error) {
	var zero T
	if err := e.send(ctx, cmd); err != nil {
		return zero, err
	}
	select {
	case out := <-reply:
		return out.val, out.err
	case <-e.stopped:
		return zero, ErrEngineStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// AddPlayer регистрирует игрока; false если идентичность уже в игре.
func (e *Engine) AddPlayer(ctx context.Context, id, name string) (bool, error) {
	reply := newReply[bool]()
	return request(ctx, e, addPlayerCmd{id: id, name: name, reply: reply}, reply)
}

// RemovePlayer убирает игрока; false если его не было.
func (e *Engine) RemovePlayer(ctx context.Context, id string) (bool, error) {
	reply := newReply[bool]()
	return request(ctx, e, removePlayerCmd{id: id, reply: reply}, reply)
}

// SetInputs передаёт состояние кнопок без ожидания ответа.
func (e *Engine) SetInputs(ctx context.Context, id string, inputs map[string]bool) error {
	// Карта копируется: вызывающий может переиспользовать свою
	copied := make(map[string]bool, len(inputs))
	for k, v := range inputs {
		copied[k] = v
	}
	return e.send(ctx, setInputsCmd{id: id, inputs: copied})
}

// Fire запрашивает выстрел без ожидания ответа.
func (e *Engine) Fire(ctx context.Context, id string, target mgl64.Vec2) error {
	return e.send(ctx, fireCmd{id: id, target: target})
}

// Revive возрождает повергнутого игрока; false если он не был повержен.
func (e *Engine) Revive(ctx context.Context, id string) (bool, error) {
	reply := newReply[bool]()
	return request(ctx, e, reviveCmd{id: id, reply: reply}, reply)
}

// Snapshot полная копия состояния, безопасная для использования вне владельца.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := newReply[Snapshot]()
	return request(ctx, e, snapshotCmd{reply: reply}, reply)
}

// Stats сводка по симуляции.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	reply := newReply[Stats]()
	return request(ctx, e, statsCmd{reply: reply}, reply)
}

// flushEvents перекладывает события мира в очередь публикации, не блокируя владельца.
func (e *Engine) flushEvents() {
	for _, ev := range e.world.DrainEvents() {
		if e.publisher == nil {
			continue
		}
		select {
		case e.events <- ev:
		default:
			e.metrics.eventDropped()
			e.log.Warn("Очередь событий переполнена, %s игрока %s потеряно", ev.Type, ev.PlayerID)
		}
	}
}

// pumpEvents публикует события в шину вне горутины владельца.
func (e *Engine) pumpEvents(ctx context.Context, quit <-chan struct{}) {
	if e.publisher == nil {
		return
	}
	for {
		select {
		case <-quit:
			return
		case <-ctx.Done():
			return
		case ev := <-e.events:
			if err := e.publish(ctx, ev); err != nil {
				e.log.Error("Публикация события: %v", err)
			}
		}
	}
}

func (e *Engine) publish(ctx context.Context, ev Event) error {
	env, err := ev.Envelope(time.Now())
	if err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, env); err != nil {
		return fmt.Errorf("событие %s игрока %s: %w", ev.Type, ev.PlayerID, err)
	}
	return nil
}
