// Package recorder stores simulated ticks in sqlite.
package recorder

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/sim"
)

// DefaultBatchSize is how many ticks are buffered before they are written.
const DefaultBatchSize = 500

// Run is one simulation run.
type Run struct {
	gorm.Model
	Name   string
	Config string
	Ticks  []Tick `gorm:"foreignKey:RunID"`
}

// Tick is one recorded sample, flattened into columns.
type Tick struct {
	ID           uint `gorm:"primarykey"`
	RunID        uint `gorm:"index"`
	Tick         int
	Time         float64
	State        string
	TimeInState  float64
	CoMX         float64
	CoMY         float64
	CoMZ         float64
	ICPX         float64
	ICPY         float64
	DesiredICPX  float64
	DesiredICPY  float64
	CMPX         float64
	CMPY         float64
	LeftX        float64
	LeftY        float64
	LeftZ        float64
	RightX       float64
	RightY       float64
	RightZ       float64
	PushRecovery string
}

func newTick(runID uint, s sim.Sample) Tick {
	left, right := s.Feet.Get(robotside.Left), s.Feet.Get(robotside.Right)
	return Tick{
		RunID:        runID,
		Tick:         s.Tick,
		Time:         s.Time,
		State:        s.State.String(),
		TimeInState:  s.TimeInState,
		CoMX:         s.CoM.X,
		CoMY:         s.CoM.Y,
		CoMZ:         s.CoM.Z,
		ICPX:         s.ICP.X,
		ICPY:         s.ICP.Y,
		DesiredICPX:  s.DesiredICP.X,
		DesiredICPY:  s.DesiredICP.Y,
		CMPX:         s.CMP.X,
		CMPY:         s.CMP.Y,
		LeftX:        left.Point.X,
		LeftY:        left.Point.Y,
		LeftZ:        left.Point.Z,
		RightX:       right.Point.X,
		RightY:       right.Point.Y,
		RightZ:       right.Point.Z,
		PushRecovery: s.PushRecovery,
	}
}

// Recorder implements sim.Sink. Samples are buffered and written in batches to the current run.
type Recorder struct {
	logger    logging.Logger
	db        *gorm.DB
	batchSize int

	mu      sync.Mutex
	run     *Run
	pending []Tick
}

var _ sim.Sink = (*Recorder)(nil)

// Open opens or creates the database at path. An empty path keeps everything in memory.
func Open(path string, logger logging.Logger) (*Recorder, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", dsn)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer and every in-memory connection is a separate database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Run{}, &Tick{}); err != nil {
		return nil, errors.Wrap(err, "cannot migrate the recorder schema")
	}
	logger.Debugw("recorder opened", "path", dsn)
	return &Recorder{logger: logger, db: db, batchSize: DefaultBatchSize}, nil
}

// SetBatchSize sets how many ticks are buffered before a write.
func (r *Recorder) SetBatchSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 {
		n = 1
	}
	r.batchSize = n
}

// StartRun flushes the previous run and starts a new one. cfg is stored as JSON.
func (r *Recorder) StartRun(ctx context.Context, name string, cfg any) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.flush(ctx); err != nil {
		return 0, err
	}
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return 0, errors.Wrap(err, "cannot encode the run config")
	}
	run := &Run{Name: name, Config: string(encoded)}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return 0, errors.Wrap(err, "cannot create run")
	}
	r.run = run
	r.logger.Infow("recording run", "name", name, "id", run.ID)
	return run.ID, nil
}

// Record implements sim.Sink.
func (r *Recorder) Record(ctx context.Context, s sim.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return errors.New("no run started")
	}
	r.pending = append(r.pending, newTick(r.run.ID, s))
	if len(r.pending) < r.batchSize {
		return nil
	}
	return r.flush(ctx)
}

// Flush writes buffered ticks.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush(ctx)
}

func (r *Recorder) flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(r.pending, r.batchSize).Error; err != nil {
		return errors.Wrapf(err, "cannot write %d ticks", len(r.pending))
	}
	r.pending = r.pending[:0]
	return nil
}

// Runs lists the recorded runs without their ticks.
func (r *Recorder) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := r.db.WithContext(ctx).Order("id").Find(&runs).Error
	return runs, errors.Wrap(err, "cannot list runs")
}

// Ticks returns the ticks of a run in order. Buffered ticks are flushed first.
func (r *Recorder) Ticks(ctx context.Context, runID uint) ([]Tick, error) {
	if err := r.Flush(ctx); err != nil {
		return nil, err
	}
	var ticks []Tick
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("tick").Find(&ticks).Error
	return ticks, errors.Wrapf(err, "cannot read ticks of run %d", runID)
}

// StateDurations returns the time spent in each walking state during a run.
func (r *Recorder) StateDurations(ctx context.Context, runID uint, dt float64) (map[string]float64, error) {
	if err := r.Flush(ctx); err != nil {
		return nil, err
	}
	var rows []struct {
		State string
		Count int
	}
	err := r.db.WithContext(ctx).Model(&Tick{}).
		Select("state, count(*) as count").
		Where("run_id = ?", runID).
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "cannot aggregate states")
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.State] = float64(row.Count) * dt
	}
	return out, nil
}

// Close flushes and closes the database.
func (r *Recorder) Close(ctx context.Context) error {
	err := r.Flush(ctx)
	sqlDB, dbErr := r.db.DB()
	if dbErr != nil {
		return errors.Wrap(dbErr, "cannot close recorder")
	}
	if closeErr := sqlDB.Close(); err == nil {
		err = closeErr
	}
	return err
}
