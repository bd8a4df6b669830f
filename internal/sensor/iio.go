package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIO attribute files exposed by the kernel dht11 driver, in milli-units.
const (
	iioTemperatureFile = "in_temp_input"
	iioHumidityFile    = "in_humidityrelative_input"
)

// IIOReader reads a DHT22 through the Linux industrial I/O subsystem
// (dht11 overlay). The driver bit-bangs the sensor on every read and
// frequently returns EIO or ETIMEDOUT, so callers should use RetryRead.
type IIOReader struct {
	// Dir is the device directory, e.g. /sys/bus/iio/devices/iio:device0.
	Dir string
}

// NewIIOReader returns a reader for the device at dir.
func NewIIOReader(dir string) *IIOReader {
	return &IIOReader{Dir: dir}
}

// Read implements ClimateReader.
func (r *IIOReader) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	temp, err := r.readMilli(iioTemperatureFile)
	if err != nil {
		return Reading{}, err
	}
	hum, err := r.readMilli(iioHumidityFile)
	if err != nil {
		return Reading{}, err
	}
	if hum < 0 || hum > 100 {
		return Reading{}, fmt.Errorf("%w: humidity %.1f out of range", ErrSensorRead, hum)
	}
	return Reading{Celsius: temp, Humidity: hum}, nil
}

func (r *IIOReader) readMilli(name string) (float64, error) {
	raw, err := os.ReadFile(filepath.Join(r.Dir, name))
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", name, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return float64(v) / 1000, nil
}
