package mesh

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Connection types understood by Dial.
const (
	ConnectionSerial = "serial"
	ConnectionTCP    = "tcp"
)

// MeshConfig holds connection settings for the device link.
type MeshConfig struct {
	// Link selection
	ConnectionType string
	SerialPort     string
	DeviceIP       string
	DevicePort     int

	// Handshake
	ConnectTimeout time.Duration
	BaudRate       int

	// Outbound rate limiting (messages per window), protects radio airtime
	SendLimit  int
	SendWindow time.Duration

	// General Config
	Logger *logrus.Logger
}

// NewMeshConfig loads the device-link configuration from the environment.
func NewMeshConfig() (*MeshConfig, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	devicePort, _ := strconv.Atoi(getEnvOrDefault("DEVICE_PORT", "4403"))
	baudRate, _ := strconv.Atoi(getEnvOrDefault("BAUD_RATE", "115200"))
	connectTimeout, _ := strconv.Atoi(getEnvOrDefault("CONNECT_TIMEOUT_SECONDS", "20"))
	sendLimit, _ := strconv.Atoi(getEnvOrDefault("MESH_SEND_LIMIT", "30"))
	sendWindow, _ := strconv.Atoi(getEnvOrDefault("MESH_SEND_WINDOW_SECONDS", "60"))

	config := &MeshConfig{
		ConnectionType: getEnvOrDefault("CONNECTION_TYPE", ConnectionSerial),
		SerialPort:     getEnvOrDefault("PORT", "/dev/ttyUSB0"),
		DeviceIP:       os.Getenv("DEVICE_IP"),
		DevicePort:     devicePort,
		ConnectTimeout: time.Duration(connectTimeout) * time.Second,
		BaudRate:       baudRate,
		SendLimit:      sendLimit,
		SendWindow:     time.Duration(sendWindow) * time.Second,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the chosen connection mode has everything it needs.
func (c *MeshConfig) Validate() error {
	switch c.ConnectionType {
	case ConnectionSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("CONNECTION_TYPE is %q but PORT is not set", ConnectionSerial)
		}
	case ConnectionTCP:
		if c.DeviceIP == "" {
			return fmt.Errorf("CONNECTION_TYPE is %q but DEVICE_IP is not set", ConnectionTCP)
		}
	default:
		return fmt.Errorf("unknown CONNECTION_TYPE %q, must be %q or %q",
			c.ConnectionType, ConnectionSerial, ConnectionTCP)
	}
	if c.SendLimit <= 0 || c.SendWindow <= 0 {
		return fmt.Errorf("send rate limit and window must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
