//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"curtain-bridge/internal/curtain"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// Controller is the curtain device as seen by the bridge.
type Controller interface {
	Name() string
	Endpoints() []int
	State(ep int) (curtain.State, bool)
	Events() *curtain.EventBus

	Open(ep int) error
	Close(ep int) error
	Stop(ep int) error
	SetPosition(ep, user int) error
	StartCalibration(ep int) error
	StopCalibration(ep int) error
	SetMotorReversal(ep int, reversed bool) error
	SetCalibrationTime(ep int, seconds float64) error
	Refresh(ep int) error
}

// Bridge connects the curtain device to MQTT with HA autodiscovery.
type Bridge struct {
	client pahomqtt.Client
	ctrl   Controller
	prefix string
	logger *slog.Logger
	unsub  func()

	// publishFn defaults to the MQTT client; tests capture it.
	publishFn func(topic string, payload []byte, retained bool)

	mu        sync.Mutex
	announced map[int]bool // gangs with published discovery
}

func newBridge(ctrl Controller, prefix string, logger *slog.Logger) *Bridge {
	return &Bridge{
		ctrl:      ctrl,
		prefix:    prefix,
		logger:    logger.With("component", "mqtt"),
		announced: make(map[int]bool),
	}
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(ctrl Controller, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(ctrl, cfg.TopicPrefix, logger)
	b.publishFn = b.mqttPublish

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("curtain-bridge-" + topicName(ctrl.Name())).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishAllDiscovery()
			b.publishAllStates()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// The on-connect handler may fire before Connect returns.
	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to device events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.ctrl.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	if b.client != nil {
		b.client.Disconnect(1000)
	}
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event curtain.Event) {
	switch event.Type {
	case curtain.EventStateChanged:
		sc, ok := event.Data.(curtain.StateChange)
		if !ok || sc.Device != b.ctrl.Name() {
			return
		}
		b.publishState(sc.Endpoint)
	case curtain.EventCommandRejected:
		rej, ok := event.Data.(curtain.Rejection)
		if !ok || rej.Device != b.ctrl.Name() {
			return
		}
		b.publish(gangTopic(b.prefix, b.ctrl.Name(), rej.Endpoint)+"/rejected", mustJSON(rej), false)
	}
}

// statePayload renders the known fields of a gang's state. Unknown fields
// are left out rather than published as placeholders.
func statePayload(st curtain.State) map[string]any {
	out := make(map[string]any)
	if st.PositionKnown {
		out["position"] = st.UserPosition
	}
	if st.Shade != curtain.ShadeUnknown {
		out["state"] = st.Shade.String()
	}
	if st.CalibrationState != curtain.CalibrationStateUnknown {
		out["calibration"] = st.CalibrationState.String()
	}
	if st.Motor != curtain.MotorUnknown {
		out["motor_direction"] = st.Motor.String()
	}
	if st.CalibrationTimeKnown {
		out["calibration_time"] = st.CalibrationTime.Seconds()
	}
	return out
}

func (b *Bridge) publishState(ep int) {
	st, ok := b.ctrl.State(ep)
	if !ok {
		return
	}
	b.publish(gangTopic(b.prefix, b.ctrl.Name(), ep), mustJSON(statePayload(st)), true)
}

func (b *Bridge) publishAllStates() {
	for _, ep := range b.ctrl.Endpoints() {
		b.publishState(ep)
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

// publishAllDiscovery announces every gang and withdraws gangs that were
// announced before but are gone now.
func (b *Bridge) publishAllDiscovery() {
	name := b.ctrl.Name()
	current := make(map[int]bool)
	for _, ep := range b.ctrl.Endpoints() {
		current[ep] = true
		for _, msg := range buildDiscovery(name, ep, b.prefix) {
			b.publish(msg.Topic, msg.Payload, true)
		}
		b.logger.Info("published HA discovery", "device", name, "gang", ep)
	}

	b.mu.Lock()
	var gone []int
	for ep := range b.announced {
		if !current[ep] {
			gone = append(gone, ep)
		}
	}
	b.announced = current
	b.mu.Unlock()

	for _, ep := range gone {
		for _, msg := range buildRemoveDiscovery(name, ep) {
			b.publish(msg.Topic, msg.Payload, true)
		}
		b.logger.Info("removed HA discovery", "device", name, "gang", ep)
	}
}

func (b *Bridge) subscribeCommands() {
	topic := b.prefix + "/" + topicName(b.ctrl.Name()) + "/+/set"
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		ep, ok := b.gangFromTopic(msg.Topic())
		if !ok {
			b.logger.Warn("command on unexpected topic", "topic", msg.Topic())
			return
		}
		b.handleCommand(ep, msg.Payload())
	})
}

// gangFromTopic extracts N from "<prefix>/<device>/gangN/set".
func (b *Bridge) gangFromTopic(topic string) (int, bool) {
	base := b.prefix + "/" + topicName(b.ctrl.Name()) + "/gang"
	rest, ok := strings.CutPrefix(topic, base)
	if !ok {
		return 0, false
	}
	num, ok := strings.CutSuffix(rest, "/set")
	if !ok {
		return 0, false
	}
	ep, err := strconv.Atoi(num)
	if err != nil || ep < 1 || ep > 255 {
		return 0, false
	}
	return ep, true
}

// gangCommand is the JSON accepted on a gang's command topic.
type gangCommand struct {
	State           string   `json:"state"`
	Position        *float64 `json:"position"`
	Calibration     string   `json:"calibration"`
	MotorReversal   *bool    `json:"motor_reversal"`
	CalibrationTime *float64 `json:"calibration_time"`
	Refresh         bool     `json:"refresh"`
}

func (b *Bridge) handleCommand(ep int, payload []byte) {
	var cmd gangCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("invalid command JSON", "gang", ep, "err", err)
		return
	}

	run := func(op string, err error) {
		if err != nil {
			b.logger.Warn("command failed", "gang", ep, "op", op, "err", err)
		}
	}

	switch strings.ToUpper(cmd.State) {
	case "":
	case "OPEN":
		run("open", b.ctrl.Open(ep))
	case "CLOSE":
		run("close", b.ctrl.Close(ep))
	case "STOP":
		run("stop", b.ctrl.Stop(ep))
	default:
		b.logger.Warn("unknown state command", "gang", ep, "state", cmd.State)
	}

	if cmd.Position != nil {
		run("set_position", b.ctrl.SetPosition(ep, int(math.Round(*cmd.Position))))
	}

	switch strings.ToLower(cmd.Calibration) {
	case "":
	case "start":
		run("start_calibration", b.ctrl.StartCalibration(ep))
	case "stop":
		run("stop_calibration", b.ctrl.StopCalibration(ep))
	default:
		b.logger.Warn("unknown calibration command", "gang", ep, "calibration", cmd.Calibration)
	}

	if cmd.MotorReversal != nil {
		run("set_motor_reversal", b.ctrl.SetMotorReversal(ep, *cmd.MotorReversal))
	}
	if cmd.CalibrationTime != nil {
		run("set_calibration_time", b.ctrl.SetCalibrationTime(ep, *cmd.CalibrationTime))
	}
	if cmd.Refresh {
		run("refresh", b.ctrl.Refresh(ep))
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if b.publishFn != nil {
		b.publishFn(topic, payload, retained)
	}
}

func (b *Bridge) mqttPublish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
