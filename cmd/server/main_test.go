package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"foodies-chatbot/internal/config"
)

func TestWriteTimeout(t *testing.T) {
	require.Zero(t, writeTimeout(config.Config{HTTPTimeout: 30 * time.Second}))
	require.Equal(t, 95*time.Second, writeTimeout(config.Config{RunTimeout: time.Minute, HTTPTimeout: 30 * time.Second}))
}
