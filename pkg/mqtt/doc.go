// Package mqtt wraps the paho MQTT client with zap logging, declarative options and an
// explicit Listener for connection and message events.
//
// Topics follow the plain MQTT 3.1.1 conventions, for example:
//
//	mosquitto_pub -t sensor/tank/3/water_level -m '{"level": 42.5}'
//	mosquitto_sub -t 'command/gate/+/action'
package mqtt
