//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/cover/curtain_living_room_gang1/cover/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload. Pointer fields are only
// sent for the components that use them.
type haDiscovery struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic,omitempty"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	ValueTemplate       string   `json:"value_template,omitempty"`
	CommandTemplate     string   `json:"command_template,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	EntityCategory      string   `json:"entity_category,omitempty"`
	PayloadOn           string   `json:"payload_on,omitempty"`
	PayloadOff          string   `json:"payload_off,omitempty"`
	StateOn             string   `json:"state_on,omitempty"`
	StateOff            string   `json:"state_off,omitempty"`
	PayloadPress        string   `json:"payload_press,omitempty"`
	PayloadOpen         string   `json:"payload_open,omitempty"`
	PayloadClose        string   `json:"payload_close,omitempty"`
	PayloadStop         string   `json:"payload_stop,omitempty"`
	PositionTopic       string   `json:"position_topic,omitempty"`
	PositionTemplate    string   `json:"position_template,omitempty"`
	SetPositionTopic    string   `json:"set_position_topic,omitempty"`
	SetPositionTemplate string   `json:"set_position_template,omitempty"`
	PositionOpen        *int     `json:"position_open,omitempty"`
	PositionClosed      *int     `json:"position_closed,omitempty"`
	Min                 *float64 `json:"min,omitempty"`
	Max                 *float64 `json:"max,omitempty"`
	Step                *float64 `json:"step,omitempty"`
	Device              haDevice `json:"device"`
}

// topicName sanitizes a device name for use in MQTT topics: lowercase,
// with only safe characters kept.
func topicName(name string) string {
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}

// gangTopic returns the state topic of one gang.
func gangTopic(prefix, device string, ep int) string {
	return fmt.Sprintf("%s/%s/gang%d", prefix, topicName(device), ep)
}

// gangIdentifier returns the unique identifier for the HA device registry.
func gangIdentifier(device string, ep int) string {
	return fmt.Sprintf("curtain_%s_gang%d", topicName(device), ep)
}

// buildDiscovery generates HA discovery messages for one gang.
func buildDiscovery(device string, ep int, prefix string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := gangTopic(prefix, device, ep)
	cmdTopic := stateTopic + "/set"
	nodeID := gangIdentifier(device, ep)
	displayName := fmt.Sprintf("%s gang %d", device, ep)

	haDev := haDevice{
		Identifiers: []string{nodeID},
		Model:       "Two-gang curtain module",
		Name:        displayName,
	}

	open, closed := 0, 100
	cover := haDiscovery{
		Name:                displayName,
		UniqueID:            nodeID + "_cover",
		StateTopic:          stateTopic,
		CommandTopic:        cmdTopic,
		AvailabilityTopic:   avail,
		DeviceClass:         "curtain",
		ValueTemplate:       "{{ 'open' if value_json.state == 'partially_open' else value_json.state }}",
		PayloadOpen:         `{"state":"OPEN"}`,
		PayloadClose:        `{"state":"CLOSE"}`,
		PayloadStop:         `{"state":"STOP"}`,
		PositionTopic:       stateTopic,
		PositionTemplate:    "{{ value_json.position }}",
		SetPositionTopic:    cmdTopic,
		SetPositionTemplate: `{"position": {{ position }}}`,
		PositionOpen:        &open,
		PositionClosed:      &closed,
		Device:              haDev,
	}

	reversal := haDiscovery{
		Name:              displayName + " Motor Reversal",
		UniqueID:          nodeID + "_motor_reversal",
		StateTopic:        stateTopic,
		CommandTopic:      cmdTopic,
		AvailabilityTopic: avail,
		EntityCategory:    "config",
		ValueTemplate:     "{{ 'ON' if value_json.motor_direction == 'reversed' else 'OFF' }}",
		PayloadOn:         `{"motor_reversal":true}`,
		PayloadOff:        `{"motor_reversal":false}`,
		StateOn:           "ON",
		StateOff:          "OFF",
		Device:            haDev,
	}

	minT, maxT, step := 0.0, 6553.5, 0.1
	calTime := haDiscovery{
		Name:              displayName + " Calibration Time",
		UniqueID:          nodeID + "_calibration_time",
		StateTopic:        stateTopic,
		CommandTopic:      cmdTopic,
		AvailabilityTopic: avail,
		EntityCategory:    "config",
		ValueTemplate:     "{{ value_json.calibration_time }}",
		CommandTemplate:   `{"calibration_time": {{ value }}}`,
		UnitOfMeasurement: "s",
		Min:               &minT,
		Max:               &maxT,
		Step:              &step,
		Device:            haDev,
	}

	calState := haDiscovery{
		Name:              displayName + " Calibration",
		UniqueID:          nodeID + "_calibration",
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		EntityCategory:    "diagnostic",
		ValueTemplate:     "{{ value_json.calibration }}",
		Device:            haDev,
	}

	msgs := []discoveryMsg{
		{Topic: fmt.Sprintf("homeassistant/cover/%s/cover/config", nodeID), Payload: mustJSON(cover)},
		{Topic: fmt.Sprintf("homeassistant/switch/%s/motor_reversal/config", nodeID), Payload: mustJSON(reversal)},
		{Topic: fmt.Sprintf("homeassistant/number/%s/calibration_time/config", nodeID), Payload: mustJSON(calTime)},
		{Topic: fmt.Sprintf("homeassistant/sensor/%s/calibration/config", nodeID), Payload: mustJSON(calState)},
	}
	for _, btn := range []struct{ objectID, suffix, action string }{
		{"calibration_start", "Start Calibration", "start"},
		{"calibration_stop", "Stop Calibration", "stop"},
	} {
		payload := haDiscovery{
			Name:              displayName + " " + btn.suffix,
			UniqueID:          nodeID + "_" + btn.objectID,
			CommandTopic:      cmdTopic,
			AvailabilityTopic: avail,
			EntityCategory:    "config",
			PayloadPress:      fmt.Sprintf(`{"calibration":%q}`, btn.action),
			Device:            haDev,
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/button/%s/%s/config", nodeID, btn.objectID),
			Payload: mustJSON(payload),
		})
	}
	return msgs
}

// buildRemoveDiscovery generates empty retained messages to remove a gang from HA.
func buildRemoveDiscovery(device string, ep int) []discoveryMsg {
	nodeID := gangIdentifier(device, ep)
	components := []struct{ comp, obj string }{
		{"cover", "cover"},
		{"switch", "motor_reversal"},
		{"number", "calibration_time"},
		{"sensor", "calibration"},
		{"button", "calibration_start"},
		{"button", "calibration_stop"},
	}

	var msgs []discoveryMsg
	for _, c := range components {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", c.comp, nodeID, c.obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
