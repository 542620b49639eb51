// Package capture provides the byte-stream sources the decode core
// consumes: an RTL-SDR dongle, raw IQ files, and hex frame feeds. Sources
// only produce bytes; demodulation and parsing live elsewhere.
package capture

import (
	"context"
	"errors"
	"fmt"

	rtlsdr "github.com/jpoirier/gortlsdr"
	"github.com/sirupsen/logrus"
)

// BufferChunkSize is the RTL-SDR transfer chunk size.
const BufferChunkSize = 16384

// Device wraps an RTL-SDR dongle tuned to 1090 MHz, delivering
// interleaved unsigned 8-bit IQ pairs on a channel.
type Device struct {
	device   *rtlsdr.Context
	logger   *logrus.Logger
	index    int
	isOpen   bool
	cancelFn context.CancelFunc
}

// OpenDevice checks device presence and returns an unconfigured handle.
func OpenDevice(index int, logger *logrus.Logger) (*Device, error) {
	count := rtlsdr.GetDeviceCount()
	if count == 0 {
		return nil, errors.New("no RTL-SDR devices found")
	}
	if index >= count {
		return nil, fmt.Errorf("device index %d out of range (0-%d)", index, count-1)
	}
	return &Device{logger: logger, index: index}, nil
}

// Configure tunes the dongle.
func (d *Device) Configure(frequency, sampleRate uint32, gain int) error {
	var err error

	d.device, err = rtlsdr.Open(d.index)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	d.isOpen = true

	if err := d.device.SetCenterFreq(int(frequency)); err != nil {
		return fmt.Errorf("failed to set frequency: %w", err)
	}
	if err := d.device.SetSampleRate(int(sampleRate)); err != nil {
		return fmt.Errorf("failed to set sample rate: %w", err)
	}

	if gain == 0 {
		if err := d.device.SetTunerGainMode(false); err != nil {
			return fmt.Errorf("failed to set auto gain: %w", err)
		}
	} else {
		if err := d.device.SetTunerGainMode(true); err != nil {
			return fmt.Errorf("failed to set manual gain mode: %w", err)
		}
		if err := d.device.SetTunerGain(gain * 10); err != nil {
			return fmt.Errorf("failed to set gain: %w", err)
		}
	}

	if err := d.device.ResetBuffer(); err != nil {
		return fmt.Errorf("failed to reset buffer: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"device_index": d.index,
		"frequency":    frequency,
		"sample_rate":  sampleRate,
		"gain":         gain,
	}).Info("RTL-SDR device configured")

	return nil
}

// StartCapture streams IQ byte chunks into dataChan until the context is
// canceled. Blocks for the duration of the capture.
func (d *Device) StartCapture(ctx context.Context, dataChan chan<- []byte) error {
	if !d.isOpen {
		return errors.New("device not open")
	}

	captureCtx, cancel := context.WithCancel(ctx)
	d.cancelFn = cancel

	bufLen := 16 * BufferChunkSize

	callback := func(data []byte) {
		select {
		case dataChan <- data:
		case <-captureCtx.Done():
		default:
			// Channel full; drop rather than stall the USB transfer.
			d.logger.Debug("Dropping IQ chunk, channel full")
		}
	}

	d.logger.Info("Starting RTL-SDR capture")

	go func() {
		defer func() {
			if panicData := recover(); panicData != nil {
				d.logger.WithField("panic", panicData).Error("RTL-SDR capture panic")
			}
		}()
		if err := d.device.ReadAsync(callback, nil, 0, bufLen); err != nil {
			d.logger.WithError(err).Error("RTL-SDR read async failed")
		}
	}()

	<-captureCtx.Done()

	if err := d.device.CancelAsync(); err != nil {
		d.logger.WithError(err).Error("Failed to cancel async reading")
	}

	return nil
}

// Close releases the dongle.
func (d *Device) Close() error {
	if d.cancelFn != nil {
		d.cancelFn()
	}
	if d.device != nil && d.isOpen {
		if err := d.device.Close(); err != nil {
			return fmt.Errorf("failed to close device: %w", err)
		}
		d.isOpen = false
		d.logger.Info("RTL-SDR device closed")
	}
	return nil
}
