package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"snapapi/internal/config"
	"snapapi/internal/model"
)

// runFunc executes the camera command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// RPiCam drives rpicam-still (libcamera apps). Each Capture is one process
// writing the JPEG to stdout and its metadata as JSON to a temp file.
type RPiCam struct {
	command string
	width   int
	height  int
	quality int
	log     *zap.Logger

	run      runFunc
	lookPath func(string) (string, error)

	mu      sync.Mutex
	open    bool
	focusOn bool
}

// NewRPiCam creates the driver from capture settings.
func NewRPiCam(cfg config.CaptureConfig, log *zap.Logger) *RPiCam {
	return &RPiCam{
		command:  cfg.Command,
		width:    cfg.Width,
		height:   cfg.Height,
		quality:  cfg.Quality,
		log:      log,
		run:      execRun,
		lookPath: exec.LookPath,
	}
}

// Open checks the capture command is installed.
func (r *RPiCam) Open(ctx context.Context) error {
	path, err := r.lookPath(r.command)
	if err != nil {
		return fmt.Errorf("camera command %s not found (install rpicam-apps): %w", r.command, err)
	}
	r.mu.Lock()
	r.open = true
	r.mu.Unlock()
	r.log.Info("camera opened", zap.String("driver", config.DriverRPiCam), zap.String("command", path))
	return nil
}

func (r *RPiCam) Close() error {
	r.mu.Lock()
	r.open = false
	r.mu.Unlock()
	return nil
}

// Focus arms autofocus for the next capture. rpicam runs the focus cycle in
// the same process as the still, so there is nothing to wait for here.
func (r *RPiCam) Focus(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return ErrNotOpen
	}
	r.focusOn = true
	return nil
}

func (r *RPiCam) Capture(ctx context.Context) (*Frame, error) {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return nil, ErrNotOpen
	}
	focus := r.focusOn
	r.focusOn = false
	r.mu.Unlock()

	md, err := os.CreateTemp("", "snapapi-md-*.json")
	if err != nil {
		return nil, fmt.Errorf("create metadata file: %w", err)
	}
	mdPath := md.Name()
	_ = md.Close()
	defer os.Remove(mdPath)

	out, err := r.run(ctx, r.command, r.args(mdPath, focus)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyFrame
	}

	meta, err := readMetadata(mdPath)
	if err != nil {
		// The image is still usable without sensor readings.
		r.log.Warn("camera metadata unreadable", zap.Error(err))
	}

	return &Frame{Data: out, MimeType: model.MimeJPEG, Metadata: meta}, nil
}

func (r *RPiCam) args(metadataPath string, focus bool) []string {
	args := []string{
		"--nopreview",
		"--immediate",
		"--width", strconv.Itoa(r.width),
		"--height", strconv.Itoa(r.height),
		"--quality", strconv.Itoa(r.quality),
		"--encoding", "jpg",
		"--metadata", metadataPath,
		"--metadata-format", "json",
		"--output", "-",
	}
	if focus {
		args = append(args, "--autofocus-on-capture")
	}
	return args
}

func readMetadata(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("metadata file is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w (stderr: %s)", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
