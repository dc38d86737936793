// simrack pretends to be one rack on the broker: it reports status,
// streams synthetic sensor readings, and obeys the commands the
// backend publishes. Handy for watching automation rules fire without
// real hardware.
//
//	go run scripts/simrack.go -broker tcp://localhost:1883 -addr AA:BB:CC:DD:EE:01 -moisture 22
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"growrack/internal/message"
)

const firmware = "simrack-0.3.1"

type simRack struct {
	client    pahomqtt.Client
	namespace string
	addr      string
	startedAt time.Time

	mu       sync.Mutex
	temp     float64
	humidity float64
	moisture float64
	light    float64
	watering bool
	lampOn   bool
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	namespace := flag.String("namespace", "growrack", "topic namespace")
	addr := flag.String("addr", "AA:BB:CC:DD:EE:01", "hardware address to impersonate")
	interval := flag.Duration("interval", 10*time.Second, "telemetry interval")
	moisture := flag.Float64("moisture", 35, "starting soil moisture percent")
	temp := flag.Float64("temperature", 23.5, "starting air temperature")
	flag.Parse()

	hwAddr, err := message.NormalizeHardwareAddr(*addr)
	if err != nil {
		log.Fatalf("Bad hardware address: %v", err)
	}

	sim := &simRack{
		namespace: *namespace,
		addr:      hwAddr,
		startedAt: time.Now(),
		temp:      *temp,
		humidity:  55,
		moisture:  *moisture,
		light:     320,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("simrack-" + hwAddr).
		SetWill(sim.deviceTopic("status"), string(sim.statusPayload(false)), 1, false)
	sim.client = pahomqtt.NewClient(opts)
	if token := sim.client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("Unable to connect to MQTT broker: %v", token.Error())
	}
	defer sim.client.Disconnect(250)

	fmt.Printf("🌱 simrack %s on %s (namespace %q)\n", hwAddr, *broker, *namespace)

	sim.subscribeCommands()
	sim.publish("status", sim.statusPayload(true))
	sim.publishReading()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sim.drift()
			sim.publishReading()
		case <-sigChan:
			fmt.Println("\nGoing offline")
			sim.publish("status", sim.statusPayload(false))
			return
		}
	}
}

func (s *simRack) subscribeCommands() {
	handlers := map[message.CommandType]pahomqtt.MessageHandler{
		message.CommandWatering: s.onWatering,
		message.CommandLighting: s.onLighting,
		message.CommandSensors:  s.onSensors,
	}
	for cmd, h := range handlers {
		topic := message.CommandTopic(s.namespace, s.addr, cmd)
		if token := s.client.Subscribe(topic, 1, h); token.Wait() && token.Error() != nil {
			log.Fatalf("Failed to subscribe %s: %v", topic, token.Error())
		}
	}
}

func (s *simRack) onWatering(_ pahomqtt.Client, msg pahomqtt.Message) {
	var cmd message.WateringCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		fmt.Printf("⚠️  bad watering payload: %v\n", err)
		return
	}
	s.mu.Lock()
	s.watering = cmd.Action == "start"
	s.mu.Unlock()

	if cmd.Action == "start" && cmd.DurationMs > 0 {
		fmt.Printf("💧 watering for %d ms\n", cmd.DurationMs)
		time.AfterFunc(time.Duration(cmd.DurationMs)*time.Millisecond, func() {
			s.mu.Lock()
			s.watering = false
			s.mu.Unlock()
			fmt.Println("💧 watering finished")
		})
		return
	}
	fmt.Printf("💧 watering %s\n", cmd.Action)
}

func (s *simRack) onLighting(_ pahomqtt.Client, msg pahomqtt.Message) {
	var cmd message.LightingCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		fmt.Printf("⚠️  bad lighting payload: %v\n", err)
		return
	}
	s.mu.Lock()
	s.lampOn = cmd.Action == "on"
	s.mu.Unlock()
	fmt.Printf("💡 grow light %s\n", cmd.Action)
}

func (s *simRack) onSensors(_ pahomqtt.Client, msg pahomqtt.Message) {
	var cmd message.SensorsCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil || cmd.Action != message.SensorsReadAction {
		fmt.Printf("⚠️  unsupported sensors command %q\n", msg.Payload())
		return
	}
	fmt.Println("📡 immediate reading requested")
	s.publishReading()
}

// drift nudges the simulated environment each tick. Watering soaks the
// soil faster than it dries, the lamp adds light and a little heat.
func (s *simRack) drift() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.moisture -= 0.4 + rand.Float64()*0.2
	if s.watering {
		s.moisture += 3.0
	}
	s.moisture = clamp(s.moisture, 0, 100)

	s.temp += rand.NormFloat64() * 0.15
	s.light = 280 + rand.Float64()*80
	if s.lampOn {
		s.light += 400
		s.temp += 0.05
	}
	s.humidity = clamp(s.humidity+rand.NormFloat64()*0.8, 20, 95)
}

func (s *simRack) publishReading() {
	s.mu.Lock()
	payload, _ := json.Marshal(map[string]any{
		"t":  round1(s.temp),
		"h":  round1(s.humidity),
		"m":  round1(s.moisture),
		"l":  round1(s.light),
		"tm": time.Now().UnixMilli(),
	})
	moisture := s.moisture
	s.mu.Unlock()

	s.publish("sensors", payload)
	fmt.Printf("→ reading sent (moisture %.1f%%)\n", moisture)
}

func (s *simRack) statusPayload(online bool) []byte {
	payload, _ := json.Marshal(map[string]any{
		"online":   online,
		"mac":      s.addr,
		"firmware": firmware,
		"rssi":     -40 - rand.Intn(30),
		"uptime":   int64(time.Since(s.startedAt).Seconds()),
		"tm":       time.Now().UnixMilli(),
	})
	return payload
}

func (s *simRack) publish(class string, payload []byte) {
	if token := s.client.Publish(s.deviceTopic(class), 1, false, payload); token.Wait() && token.Error() != nil {
		fmt.Printf("⚠️  publish %s failed: %v\n", class, token.Error())
	}
}

func (s *simRack) deviceTopic(class string) string {
	return fmt.Sprintf("%s/rack/%s/%s", s.namespace, s.addr, class)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
