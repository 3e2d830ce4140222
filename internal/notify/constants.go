package notify

import "time"

// MQTT settings
const (
	TopicMonitoring  = "monitoring"
	TopicCoordinates = "coordinates"

	QoS             = 1
	ConnectTimeout  = 10 * time.Second
	PublishTimeout  = 2 * time.Second
	DisconnectQuiet = 250 // ms
)
