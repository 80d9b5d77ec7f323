package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/visage-project/visage/internal/config"
	"github.com/visage-project/visage/internal/emitter"
	"github.com/visage-project/visage/internal/frame"
	"github.com/visage-project/visage/internal/inference"
	"github.com/visage-project/visage/internal/store"
)

// request is one unit of work handed to the worker goroutine. The
// worker answers on reply with a response in which only the result
// field for kind is meaningful.
type request struct {
	kind     requestKind
	user     string
	label    string
	modelID  string
	deadline time.Time
	reply    chan response
}

type requestKind int

const (
	kindEnroll requestKind = iota
	kindVerify
	kindListModels
	kindRemoveModel
	kindStatus
)

type response struct {
	err          error
	modelID      string
	verified     bool
	models       []store.FaceModel
	removed      bool
	status       statusSnapshot
}

type statusSnapshot struct {
	cameraDevice   string
	pixelFormat    string
	width, height  int
	modelDir       string
	emitterEnabled bool
	emitterActive  bool
	enrolledUsers  int
	enrolledModels int
}

// worker owns the camera, IR emitter, inference engine, and model store
// and serializes every request onto a single goroutine, matching the
// single-owner resource model: none of these handles is safe for
// concurrent use.
type worker struct {
	cfg     *config.Config
	cam     *frame.Camera
	ctrl    *emitter.Controller
	engine  *inference.Engine
	db      *store.Store
	lockout *lockoutTracker
	logger  *logrus.Logger

	requests chan request
	done     chan struct{}
	started  time.Time
}

// newWorker opens every resource the worker needs. Any failure here
// should abort daemon startup.
func newWorker(cfg *config.Config, logger *logrus.Logger) (*worker, error) {
	cam, err := frame.Open(cfg.CameraDevice, logger)
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	if err := cam.Start(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("start camera: %w", err)
	}

	var ctrl *emitter.Controller
	if cfg.EmitterEnabled {
		ctrl = emitter.Resolve(cfg.CameraDevice, logger)
	}

	eng, err := inference.Load(cfg.DetectorPath(), cfg.RecognizerPath())
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("load inference engine: %w", err)
	}

	db, err := store.Open(cfg.DBPath, cfg.KeyPath())
	if err != nil {
		eng.Close()
		_ = cam.Close()
		return nil, fmt.Errorf("open model store: %w", err)
	}

	w := &worker{
		cfg:      cfg,
		cam:      cam,
		ctrl:     ctrl,
		engine:   eng,
		db:       db,
		lockout:  newLockoutTracker(),
		logger:   logger,
		requests: make(chan request, 4),
		done:     make(chan struct{}),
		started:  time.Now(),
	}
	return w, nil
}

// warmup discards the configured number of initial frames, letting
// auto-exposure/auto-gain settle before any frame is used for matching.
func (w *worker) warmup(ctx context.Context) {
	if w.cfg.WarmupFrames <= 0 {
		return
	}
	if _, _, err := w.cam.CaptureFrames(ctx, w.cfg.WarmupFrames); err != nil {
		w.logger.Warnf("warmup capture: %v", err)
	}
}

// run is the worker's single goroutine: it processes exactly one
// request at a time, in FIFO order, until close is called.
func (w *worker) run() {
	defer close(w.done)
	for req := range w.requests {
		req.reply <- w.handle(req)
	}
}

func (w *worker) handle(req request) response {
	ctx, cancel := context.WithDeadline(context.Background(), req.deadline)
	defer cancel()

	switch req.kind {
	case kindEnroll:
		return w.handleEnroll(ctx, req)
	case kindVerify:
		return w.handleVerify(ctx, req)
	case kindListModels:
		return w.handleListModels(req)
	case kindRemoveModel:
		return w.handleRemoveModel(req)
	case kindStatus:
		return w.handleStatus()
	default:
		return response{err: fmt.Errorf("unknown request kind %d", req.kind)}
	}
}

func (w *worker) handleEnroll(ctx context.Context, req request) response {
	if w.ctrl != nil {
		w.ctrl.Activate()
		defer w.ctrl.Deactivate()
	}

	frames, _, err := w.cam.CaptureFrames(ctx, w.cfg.FramesPerEnroll)
	if err != nil {
		return response{err: fmt.Errorf("capture frames: %w", err)}
	}

	results, err := w.detectAllFrames(frames)
	if err != nil {
		return response{err: err}
	}
	if len(results) == 0 {
		return response{err: fmt.Errorf("no usable face detected across %d frames", len(frames))}
	}

	embedding, qualityScore := averageEmbedding(results)

	modelID, err := w.db.Enroll(req.user, req.label, embedding, qualityScore)
	if err != nil {
		return response{err: fmt.Errorf("persist enrollment: %w", err)}
	}
	return response{modelID: modelID}
}

func (w *worker) handleVerify(ctx context.Context, req request) response {
	if locked, remaining := w.lockout.Locked(req.user); locked {
		return response{err: fmt.Errorf("account locked for %s", remaining.Round(time.Second))}
	}

	gallery, err := w.db.ListModels(req.user)
	if err != nil {
		return response{err: fmt.Errorf("load enrolled models: %w", err)}
	}
	if len(gallery) == 0 {
		w.db.RecordAttempt(req.user, false)
		return response{verified: false}
	}

	if w.ctrl != nil {
		w.ctrl.Activate()
		defer w.ctrl.Deactivate()
	}

	frames, _, err := w.cam.CaptureFrames(ctx, w.cfg.FramesPerVerify)
	if err != nil {
		return response{err: fmt.Errorf("capture frames: %w", err)}
	}

	results, err := w.detectAllFrames(frames)
	if err != nil {
		return response{err: err}
	}
	if len(results) == 0 {
		w.lockout.RecordFailure(req.user)
		w.db.RecordAttempt(req.user, false)
		return response{verified: false}
	}

	embeddings := make([]*inference.Embedding, len(gallery))
	for i := range gallery {
		embeddings[i] = &gallery[i].Embedding
	}

	// Compare every frame's embedding against every gallery embedding and
	// keep the best (probe, stored) pair across the full cross-product —
	// the frame with the highest detection confidence need not be the
	// frame whose embedding best matches the gallery.
	var bestSimilarity float32
	matchFound := false
	for _, r := range results {
		match := inference.BestMatch(&r.Embedding, embeddings)
		if match.BestIndex < 0 {
			continue
		}
		if !matchFound || match.BestSimilarity > bestSimilarity {
			bestSimilarity = match.BestSimilarity
			matchFound = true
		}
	}

	verified := matchFound && float64(bestSimilarity) >= w.cfg.SimilarityThreshold
	if verified {
		w.lockout.RecordSuccess(req.user)
	} else {
		w.lockout.RecordFailure(req.user)
	}
	w.db.RecordAttempt(req.user, verified)
	return response{verified: verified}
}

// detectAllFrames runs detect-align-embed across every captured frame
// and returns a result for each frame that yielded exactly one
// detected face, in frame order.
func (w *worker) detectAllFrames(frames []*frame.Frame) ([]*inference.Result, error) {
	var results []*inference.Result
	for _, f := range frames {
		result, err := w.engine.DetectAlignEmbed(f.Data, f.Width, f.Height)
		if err != nil {
			return nil, fmt.Errorf("inference: %w", err)
		}
		if result == nil {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// averageEmbedding computes the confidence-weighted mean of a set of
// per-frame embeddings and L2-normalizes it, per spec's enrollment
// algorithm. It also returns the mean detection confidence, stored as
// the model's quality_score.
func averageEmbedding(results []*inference.Result) (inference.Embedding, float64) {
	sum := make([]float32, inference.EmbeddingSize)
	var weightTotal float64
	for _, r := range results {
		weight := float64(r.Box.Confidence)
		weightTotal += weight
		for i, v := range r.Embedding.Vector {
			sum[i] += float32(weight) * v
		}
	}

	normalized := inference.L2Normalize(sum, inference.ModelVersion)
	return normalized, weightTotal / float64(len(results))
}

func (w *worker) handleListModels(req request) response {
	models, err := w.db.ListModels(req.user)
	if err != nil {
		return response{err: fmt.Errorf("list models: %w", err)}
	}
	return response{models: models}
}

func (w *worker) handleRemoveModel(req request) response {
	removed, err := w.db.RemoveModel(req.user, req.modelID)
	if err != nil {
		return response{err: fmt.Errorf("remove model: %w", err)}
	}
	return response{removed: removed}
}

func (w *worker) handleStatus() response {
	format, width, height := "", 0, 0
	if w.cam != nil {
		format = w.cam.Format().String()
		width, height = w.cam.Resolution()
	}

	enrolledModels, _ := w.db.CountModels()
	enrolledUsers, _ := w.db.CountDistinctUsers()

	return response{status: statusSnapshot{
		cameraDevice:   w.cfg.CameraDevice,
		pixelFormat:    format,
		width:          width,
		height:         height,
		modelDir:       w.cfg.ModelDir,
		emitterEnabled: w.cfg.EmitterEnabled,
		emitterActive:  w.ctrl != nil && w.ctrl.Enabled(),
		enrolledUsers:  enrolledUsers,
		enrolledModels: enrolledModels,
	}}
}

// submit enqueues req and blocks until the worker replies. The channel
// is bounded, so a caller under heavy load blocks here rather than the
// worker ever processing more than one request concurrently.
func (w *worker) submit(req request) response {
	req.reply = make(chan response, 1)
	w.requests <- req
	return <-req.reply
}

// close drains the queue and stops the worker goroutine, then releases
// every owned resource in reverse-acquisition order.
func (w *worker) close() {
	close(w.requests)
	<-w.done

	if err := w.db.Close(); err != nil {
		w.logger.Warnf("close model store: %v", err)
	}
	w.engine.Close()
	if err := w.cam.Close(); err != nil {
		w.logger.Warnf("close camera: %v", err)
	}
}
