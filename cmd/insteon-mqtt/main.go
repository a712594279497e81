// Copyright 2018 Andrew Bates
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command insteon-mqtt is the process entrypoint: it loads
// config.yaml, opens the PLM, starts the protocol engine and device
// registry, bridges device state to MQTT, and (when enabled) serves
// the administrative webcli endpoint.
package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/abates/cli"
	"github.com/tarm/serial"

	"github.com/krkeegan/insteon-mqtt"
	"github.com/krkeegan/insteon-mqtt/config"
	"github.com/krkeegan/insteon-mqtt/mqttlink"
	"github.com/krkeegan/insteon-mqtt/network"
	"github.com/krkeegan/insteon-mqtt/plm"
	"github.com/krkeegan/insteon-mqtt/webcli"
)

var app = cli.New("insteon-mqtt", cli.DescOption("Insteon to MQTT gateway"))

func init() {
	app.SubCommand("start", cli.DescOption("Start the gateway"), cli.CallbackOption(startCmd))
}

func main() {
	if err := app.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func startCmd() error {
	cfgPath := os.Getenv("INSTEON_MQTT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := flag.Set("v", strconv.Itoa(cfg.Logging.Level)); err != nil {
		insteon.Log.Warningf("main: setting log verbosity: %v", err)
	}

	port, err := openPLMPort(cfg.PLM)
	if err != nil {
		return err
	}

	link := plm.New(port, cfg.Protocol.Timeout)
	engine := insteon.NewProtocolEngine(link, cfg.Protocol.SuppressWindow)
	registry := insteon.NewRegistry(engine)

	info, err := link.Info()
	if err != nil {
		return err
	}
	modem := insteon.NewModem(info.Address, "modem", engine, link.LinkDB())
	registry.SetModem(modem)
	registry.Add(modem)
	if err := modem.RefreshLinks(); err != nil {
		insteon.Log.Warningf("main: refreshing modem links: %v", err)
	}

	mqttClient, err := mqttlink.Connect(cfg.MQTT)
	if err != nil {
		return err
	}
	defer mqttClient.Close()

	bridge := newMQTTBridge(registry, mqttClient, cfg.MQTT.Topics.Prefix)
	bridge.Start()

	if err := connectKnownDevices(cfg, engine, modem, registry, bridge); err != nil {
		return err
	}

	if cfg.WebCLI.Enabled {
		if err := startWebCLI(cfg.WebCLI); err != nil {
			return err
		}
	}

	return <-link.Disconnected()
}

// openPLMPort opens either the configured serial port or TCP host,
// the same Serial-or-Network choice the teacher's cmd/ic left for its
// caller to make explicit. plm.New only needs an io.ReadWriter, so
// both transports are handed to it as-is.
func openPLMPort(cfg config.PLMConfig) (io.ReadWriter, error) {
	if cfg.Serial.Port != "" {
		return serial.OpenPort(&serial.Config{Name: cfg.Serial.Port, Baud: cfg.Serial.Baud})
	}
	return net.Dial("tcp", net.JoinHostPort(cfg.Network.Host, strconv.Itoa(cfg.Network.Port)))
}

func connectKnownDevices(cfg *config.Config, engine *insteon.ProtocolEngine, modem *insteon.Modem, registry *insteon.Registry, bridge *mqttBridge) error {
	entries, err := os.ReadDir(cfg.Database.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		addr, ok := addressFromFilename(ent.Name())
		if !ok {
			continue
		}
		network.Connect(engine, modem, registry, addr, addr.String(), cfg.Protocol.Timeout, func(dev insteon.Device, err error) {
			if err != nil {
				insteon.Log.Warningf("main: connecting %s: %v", addr, err)
				return
			}
			bridge.attach(dev)
		})
	}
	return nil
}

func addressFromFilename(name string) (insteon.Address, bool) {
	const suffix = ".yaml"
	if len(name) != len("aa.bb.cc")+len(suffix) {
		return insteon.Address{}, false
	}
	addr, err := insteon.ParseAddress(name[:len(name)-len(suffix)])
	if err != nil {
		return insteon.Address{}, false
	}
	return addr, true
}

func startWebCLI(cfg config.WebCLIConfig) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cfgPath := os.Getenv("INSTEON_MQTT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	worker := webcli.NewWorker(exe, cfgPath)
	server := webcli.NewServer(worker, cfg.AllowedHosts)

	ln, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return err
	}
	go func() {
		if err := server.Serve(ln); err != nil {
			insteon.Log.Infof("webcli: server stopped: %v", err)
		}
	}()
	return nil
}
