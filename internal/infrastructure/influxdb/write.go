package influxdb

import (
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDoor    = "door"
	measurementClimate = "climate"
	measurementMotion  = "motion"
	measurementSensor  = "sensor_errors"
)

// The methods below satisfy telemetry.Recorder.

// DoorState records a published door state.
func (c *Client) DoorState(door int, state string) {
	c.writeDoor(door, map[string]interface{}{"state": state})
}

// DoorActuation records a relay pulse.
func (c *Client) DoorActuation(door int, command string) {
	c.writeDoor(door, map[string]interface{}{"actuation": command})
}

// CommandRejected records a command that caused no actuation.
func (c *Client) CommandRejected(door int, reason string) {
	c.writeDoor(door, map[string]interface{}{"rejected": reason})
}

// Climate records a climate reading.
func (c *Client) Climate(temperatureF, humidity float64) {
	c.writePoint(measurementClimate, nil, map[string]interface{}{
		"temperature_f": temperatureF,
		"humidity":      humidity,
	})
}

// Motion records a PIR transition.
func (c *Client) Motion(level int) {
	c.writePoint(measurementMotion, nil, map[string]interface{}{"level": level})
}

// SensorReadFailed records a skipped poll cycle.
func (c *Client) SensorReadFailed(sensor string) {
	c.writePoint(measurementSensor, map[string]string{"sensor": sensor}, map[string]interface{}{"count": 1})
}

func (c *Client) writeDoor(door int, fields map[string]interface{}) {
	c.writePoint(measurementDoor, map[string]string{"door": strconv.Itoa(door)}, fields)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	all := map[string]string{"host": c.host}
	for k, v := range tags {
		all[k] = v
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, all, fields, c.now()))
}
