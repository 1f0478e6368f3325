package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so scenario files can say "100ms" or "2m";
// neither yaml.v3 nor encoding/json decodes duration strings natively.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type NodeCfg struct {
	Count     int      `yaml:"count" json:"count"`
	Gateways  int      `yaml:"gateways" json:"gateways"` // how many of Count have direct internet
	JoinDelay Duration `yaml:"join_delay" json:"join_delay"`
}

type TrafficCfg struct {
	MsgPerNodePerMin float64 `yaml:"msg_per_node_per_min" json:"msg_per_node_per_min"`
	SinkID           uint32  `yaml:"sink_id" json:"sink_id"` // application id of the internet sink
}

type UplinkCfg struct {
	Broker string `yaml:"broker" json:"broker"`
	Topic  string `yaml:"topic" json:"topic"`
}

type LogCfg struct {
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

type Scenario struct {
	Duration     Duration   `yaml:"duration" json:"duration"`
	Seed         int64      `yaml:"seed" json:"seed"`
	AreaM2       float64    `yaml:"area_m2" json:"area_m2"`
	Nodes        NodeCfg    `yaml:"nodes" json:"nodes"`
	StartupDelay Duration   `yaml:"startup_delay" json:"startup_delay"`
	Traffic      TrafficCfg `yaml:"traffic" json:"traffic"`
	Uplink       UplinkCfg  `yaml:"uplink" json:"uplink"`
	Logging      LogCfg     `yaml:"logging" json:"logging"`
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := &Scenario{}
	if yaml.Unmarshal(f, sc) == nil {
		return sc, nil
	}
	// fallback JSON
	if err := json.Unmarshal(f, sc); err != nil {
		return nil, err
	}
	return sc, nil
}
