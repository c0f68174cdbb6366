package training

import (
	"fmt"
	"time"

	"github.com/hepqml/jettag/dataset"
	"github.com/hepqml/jettag/metrics"
	"github.com/hepqml/jettag/track"
)

// MetricSink is the write-only boundary the loop logs scalars through.
// *track.Run satisfies it.
type MetricSink interface {
	Log(name string, value float64, opts track.LogOptions)
	Finish() error
}

// phaseState tracks where a phase is in its epoch lifecycle.
type phaseState int

const (
	stateIdle phaseState = iota
	stateAccumulating
	stateAggregating
)

func (s phaseState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAccumulating:
		return "accumulating"
	case stateAggregating:
		return "aggregating"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// EpochController drives the per-phase epoch lifecycle: StartPhase opens
// a fresh metric buffer, OnBatch evaluates batches into it, and EndPhase
// aggregates ROC-AUC and discards the buffer. Calls out of order are
// errors; once aggregation begins no further batches can be appended for
// that phase-epoch. Each phase owns its own buffer and state, so an
// in-flight train epoch does not interfere with validation.
type EpochController struct {
	eval     *BatchEvaluator
	sink     MetricSink
	logEvery int

	buffers map[Phase]*metrics.EpochBuffer
	states  map[Phase]phaseState

	trainStart time.Time
	lossSum    map[Phase]float64
	accSum     map[Phase]float64
	batches    map[Phase]int

	globalStep int
}

// NewEpochController creates a controller logging step metrics every
// logEvery training steps.
func NewEpochController(eval *BatchEvaluator, sink MetricSink, logEvery int) *EpochController {
	if logEvery <= 0 {
		logEvery = 1
	}
	return &EpochController{
		eval:     eval,
		sink:     sink,
		logEvery: logEvery,
		buffers:  make(map[Phase]*metrics.EpochBuffer),
		states:   make(map[Phase]phaseState),
		lossSum:  make(map[Phase]float64),
		accSum:   make(map[Phase]float64),
		batches:  make(map[Phase]int),
	}
}

// GlobalStep returns the number of training batches processed so far.
func (c *EpochController) GlobalStep() int { return c.globalStep }

// SetGlobalStep restores the step counter when resuming from a checkpoint.
func (c *EpochController) SetGlobalStep(n int) { c.globalStep = n }

// StartPhase opens a new phase-epoch with an empty buffer. The phase must
// be idle.
func (c *EpochController) StartPhase(p Phase) error {
	if s := c.states[p]; s != stateIdle {
		return fmt.Errorf("training: cannot start %s phase from %s state", p, s)
	}
	buf := metrics.NewEpochBuffer()
	buf.Reset()
	c.buffers[p] = buf
	c.states[p] = stateAccumulating
	c.lossSum[p] = 0
	c.accSum[p] = 0
	c.batches[p] = 0
	if p == PhaseTrain {
		c.trainStart = time.Now()
	}
	return nil
}

// OnBatch evaluates one batch for the phase, accumulating (label, score)
// pairs into the phase buffer. In the train phase the evaluator also
// backpropagates and loss/accuracy are logged every logEvery steps;
// validation and test log per-step accuracy only, with their loss
// reported as the epoch mean.
func (c *EpochController) OnBatch(p Phase, batch *dataset.Batch) (float64, float64, error) {
	if s := c.states[p]; s != stateAccumulating {
		return 0, 0, fmt.Errorf("training: %s batch in %s state", p, s)
	}

	loss, acc, err := c.eval.Evaluate(batch, c.buffers[p], p == PhaseTrain)
	if err != nil {
		return 0, 0, fmt.Errorf("training: %s batch %d: %w", p, c.batches[p], err)
	}

	c.lossSum[p] += loss
	c.accSum[p] += acc
	c.batches[p]++

	if p == PhaseTrain {
		c.globalStep++
		if c.globalStep%c.logEvery == 0 {
			opts := track.LogOptions{OnStep: true, Step: c.globalStep}
			c.sink.Log(p.lossKey(), loss, opts)
			c.sink.Log(p.accKey(), acc, opts)
		}
	} else if c.batches[p]%c.logEvery == 0 {
		c.sink.Log(p.accKey(), acc, track.LogOptions{OnStep: true, Step: c.globalStep})
	}

	return loss, acc, nil
}

// EndPhase aggregates the phase buffer into ROC-AUC, logs the epoch
// scalars, and discards the buffer. The phase returns to idle whether or
// not aggregation succeeds; a single-class epoch surfaces as an error.
func (c *EpochController) EndPhase(p Phase) (float64, error) {
	if s := c.states[p]; s != stateAccumulating {
		return 0, fmt.Errorf("training: cannot end %s phase from %s state", p, s)
	}
	c.states[p] = stateAggregating

	buf := c.buffers[p]
	delete(c.buffers, p)
	defer func() { c.states[p] = stateIdle }()

	auc, err := buf.Aggregate()
	if err != nil {
		return 0, fmt.Errorf("training: aggregate %s epoch: %w", p, err)
	}

	opts := track.LogOptions{OnEpoch: true, Step: c.globalStep}
	if n := c.batches[p]; n > 0 {
		c.sink.Log(p.lossKey(), c.lossSum[p]/float64(n), opts)
		c.sink.Log(p.accKey(), c.accSum[p]/float64(n), opts)
	}
	c.sink.Log(p.rocKey(), auc, opts)
	if p == PhaseTrain {
		c.sink.Log("epoch_time", time.Since(c.trainStart).Seconds(), opts)
	}

	return auc, nil
}
