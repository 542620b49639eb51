package capture

import (
	"bufio"
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// StreamIQ reads interleaved IQ bytes from r in fixed chunks and delivers
// them on dataChan until EOF or context cancellation. Used for recorded
// captures and subprocess shims that write raw samples to a pipe.
func StreamIQ(ctx context.Context, r io.Reader, dataChan chan<- []byte, logger *logrus.Logger) error {
	reader := bufio.NewReaderSize(r, 16*BufferChunkSize)
	for {
		buf := make([]byte, BufferChunkSize)
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			select {
			case dataChan <- buf[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				logger.Info("IQ stream ended")
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// StreamHexLines reads a hex frame feed (rtl_adsb style "*...;" lines or
// bare hex) and delivers each line on lineChan as read, untrimmed.
// Trimming and malformed content are left for the parser to handle.
func StreamHexLines(ctx context.Context, r io.Reader, lineChan chan<- string, logger *logrus.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		select {
		case lineChan <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	logger.Info("Hex stream ended")
	return nil
}
