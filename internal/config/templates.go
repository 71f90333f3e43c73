package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "dapcore", "core":
		return coreTemplate, nil
	case "receiver", "dapreceiver":
		return receiverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const coreTemplate = `listen_addr = "127.0.0.1:43434"
callsign = "do6uk-dau"
slots = "2389D"
send_time_utc = true
send_time_local = true
block_interval = "103s"
use_socket = true
socket_path = "/tmp/dapnet_dau.s"
socket_idle_timeout = "2s"
use_pipe = true
pipe_path = "./dapnet_dau.fifo"
admin_listen_addr = ""
admin_token = ""
ping_interval_seconds = 30
beacon_every = 10
strict_ack = false
bind_retry_delay = "6s"
bind_max_attempts = 10
`

const receiverTemplate = `socket_path = "/tmp/dapnet_dau.s"
# e.g. [8, 208, 224, 200, 216, 2504] to skip the core's own broadcasts
ric_blacklist = []
retry_delay = "3s"
ack_timeout = "2s"
`
