package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"adsb1090/internal/adsb"
	"adsb1090/internal/capture"
	"adsb1090/internal/demod"
	"adsb1090/internal/filter"
	"adsb1090/internal/logging"
	"adsb1090/internal/track"
)

// icaoCacheTTL bounds how long an address confirmed by DF11/17/18 stays
// eligible for short-frame address recovery.
const icaoCacheTTL = 60 * time.Second

// Application wires the capture source, demodulator, frame parser,
// tracker and filter engine into the three lanes: ingest, readers and
// maintenance.
type Application struct {
	config  Config
	logger  *logrus.Logger
	device  *capture.Device
	demod   *demod.Demodulator
	cache   *adsb.IcaoCache
	tracker *track.Tracker
	engine  *filter.Engine
	rotator *logging.Rotator
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Input counters per the decode error taxonomy.
	inputErrors   uint64
	crcFails      uint64
	uncorrectable uint64
	unknownDF     uint64
	unknownIcao   uint64
	framesOK      uint64
}

// NewApplication validates the configuration and builds all components.
// Configuration errors are fatal here and prevent the ingest lane from
// ever starting.
func NewApplication(config Config) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	trackCfg := track.DefaultConfig()
	trackCfg.StaleTimeout = time.Duration(config.StaleTimeoutS) * time.Second
	trackCfg.PhantomTimeout = time.Duration(config.PhantomTimeoutS) * time.Second
	trackCfg.PairWindow = time.Duration(config.CprPairWindowS) * time.Second
	trackCfg.LocalMaxDistanceNM = config.LocalCprMaxDistance
	if ref := config.ReceiverReference; ref != nil {
		trackCfg.RefLat = ref.Lat
		trackCfg.RefLon = ref.Lon
		trackCfg.HasRef = true
	}

	engine, err := filter.NewEngine(config.FilterConfig(), logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Application{
		config:  config,
		logger:  logger,
		demod:   demod.New(logger),
		cache:   adsb.NewIcaoCache(icaoCacheTTL),
		tracker: track.New(trackCfg, logger),
		engine:  engine,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start runs the application until a shutdown signal arrives.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting ADS-B decoder")

	var err error
	app.rotator, err = logging.NewRotator(app.config.LogDir, app.config.LogRotateUTC, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event log: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.run(); err != nil {
		app.logger.WithError(err).Error("Application error")
		return err
	}

	<-sigChan
	app.logger.Info("Received shutdown signal")
	app.shutdown()

	return nil
}

func (app *Application) run() error {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.rotator.Start(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.maintenanceLoop()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	switch {
	case app.config.HexFile != "":
		return app.startHexIngest()
	default:
		return app.startIQIngest()
	}
}

// startIQIngest runs the IQ ingest lane: capture source to demodulator to
// frame handling. Demodulation is CPU-bound and owns its goroutine.
func (app *Application) startIQIngest() error {
	dataChan := make(chan []byte, 100)

	if app.config.IQFile != "" {
		reader, closer, err := openInput(app.config.IQFile)
		if err != nil {
			return fmt.Errorf("failed to open IQ input: %w", err)
		}
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			defer closer()
			if err := capture.StreamIQ(app.ctx, reader, dataChan, app.logger); err != nil && err != context.Canceled {
				app.logger.WithError(err).Error("IQ stream failed")
			}
		}()
	} else {
		device, err := capture.OpenDevice(app.config.Device, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open RTL-SDR: %w", err)
		}
		if err := device.Configure(app.config.Frequency, app.config.SampleRate, app.config.Gain); err != nil {
			return fmt.Errorf("failed to configure RTL-SDR: %w", err)
		}
		app.device = device
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := device.StartCapture(app.ctx, dataChan); err != nil {
				app.logger.WithError(err).Error("RTL-SDR capture failed")
			}
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.processIQ(dataChan)
	}()

	return nil
}

func (app *Application) processIQ(dataChan <-chan []byte) {
	for {
		select {
		case <-app.ctx.Done():
			app.logger.Info("IQ processing stopped")
			return
		case data := <-dataChan:
			if data == nil {
				continue
			}
			mag := demod.Magnitude(data)
			for _, raw := range app.demod.Process(mag, time.Now()) {
				app.handleHexFrame(raw.Hex, raw.CaptureTime)
			}
		}
	}
}

func (app *Application) startHexIngest() error {
	reader, closer, err := openInput(app.config.HexFile)
	if err != nil {
		return fmt.Errorf("failed to open hex input: %w", err)
	}

	lineChan := make(chan string, 1000)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer closer()
		if err := capture.StreamHexLines(app.ctx, reader, lineChan, app.logger); err != nil && err != context.Canceled {
			app.logger.WithError(err).Error("Hex stream failed")
		}
		close(lineChan)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		for {
			select {
			case <-app.ctx.Done():
				return
			case line, ok := <-lineChan:
				if !ok {
					return
				}
				hex, ok := adsb.ParseHexLine(line)
				if !ok {
					continue
				}
				app.handleHexFrame(hex, time.Now())
			}
		}
	}()

	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// handleHexFrame runs one candidate frame through parse, decode, tracker
// and filters, and writes the resulting events.
func (app *Application) handleHexFrame(hex string, captureTime time.Time) {
	opts := adsb.ParseOptions{
		CorrectErrors:    app.config.CrcCorrectionEnabled(),
		RequireKnownIcao: true,
	}

	frame, err := adsb.ParseFrame(hex, captureTime, opts, app.cache)
	if err != nil {
		switch err {
		case adsb.ErrBadHex, adsb.ErrBadLength:
			app.inputErrors++
		case adsb.ErrCrc:
			app.crcFails++
		case adsb.ErrUncorrectable:
			app.uncorrectable++
		case adsb.ErrUnknownDF:
			app.unknownDF++
		case adsb.ErrUnknownIcao:
			app.unknownIcao++
		default:
			app.inputErrors++
		}
		return
	}
	app.framesOK++

	msg, err := adsb.Decode(frame)
	if err != nil || msg == nil {
		return
	}

	trackEvents := app.tracker.Ingest(msg, captureTime)
	app.writeTrackEvents(trackEvents)

	if ac, ok := app.tracker.Get(frame.Addr); ok {
		app.writeAnomalies(app.engine.Check(&ac, captureTime))
	}
	app.writeAnomalies(app.engine.CheckPairwise(app.tracker.Snapshot(), captureTime))
}

func (app *Application) writeTrackEvents(events []track.TrackEvent) {
	for i := range events {
		app.writeLine(formatTrackEvent(&events[i]))
	}
}

func (app *Application) writeAnomalies(events []filter.AnomalyEvent) {
	for i := range events {
		e := &events[i]
		app.logger.WithFields(logrus.Fields{
			"kind": e.Kind,
			"icao": e.Addr.String(),
		}).Info(e.Details)
		app.writeLine(formatAnomalyEvent(e))
	}
}

func (app *Application) writeLine(line string) {
	writer, err := app.rotator.Writer()
	if err != nil {
		app.logger.WithError(err).Debug("No event log writer")
		return
	}
	if _, err := writer.Write([]byte(line + "\n")); err != nil {
		app.logger.WithError(err).Debug("Failed to write event")
	}
}

// maintenanceLoop runs pruning once per minute: stale aircraft, phantom
// aircraft that never produced a position, and expired ICAO cache
// entries.
func (app *Application) maintenanceLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case now := <-ticker.C:
			removed := app.tracker.PruneStale(now)
			removed = append(removed, app.tracker.PrunePhantoms(now)...)
			for _, addr := range removed {
				app.engine.Forget(addr)
			}
			expired := app.cache.Prune(now)
			if len(removed) > 0 || expired > 0 {
				app.logger.WithFields(logrus.Fields{
					"pruned_aircraft": len(removed),
					"expired_icaos":   expired,
				}).Debug("Maintenance pass")
			}
		}
	}
}

func (app *Application) reportStatistics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			stats := app.tracker.Stats()
			app.logger.WithFields(logrus.Fields{
				"aircraft":         app.tracker.Len(),
				"preambles":        app.demod.PreamblesFound,
				"frames_ok":        app.framesOK,
				"crc_failures":     app.crcFails,
				"uncorrectable":    app.uncorrectable,
				"unknown_df":       app.unknownDF,
				"unknown_icao":     app.unknownIcao,
				"input_errors":     app.inputErrors,
				"position_decodes": stats.PositionDecodes,
				"cpr_mismatch":     stats.CprZoneMismatch,
			}).Info("Processing statistics")
		}
	}
}

func (app *Application) shutdown() {
	app.logger.Info("Shutting down")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(5 * time.Second):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	if app.device != nil {
		app.device.Close()
	}
	if app.rotator != nil {
		app.rotator.Close()
	}

	app.logger.Info("Shutdown completed")
}
