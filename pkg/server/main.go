package server

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/util"
	"github.com/google/uuid"
)

const maxWorkers = 1000

// RunServer starts the relay front-end with optional TLS and compression.
func RunServer(cfg *config.Config, handler *CommandHandler) error {
	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
		log.Printf("📈 Prometheus exporter started on port %d", cfg.ExporterPort)
	} else {
		log.Println("📉 Exporter disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	var ln net.Listener
	var err error
	if cfg.UseTLS {
		tlsConfig := &tls.Config{Certificates: []tls.Certificate{cfg.TLSCert}}
		ln, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}

	log.Printf("🧩 Relay listening on %s (TLS=%v, compression=%s)", addr, cfg.UseTLS, cfg.Compression)

	workerCh := make(chan net.Conn, maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		go func() {
			for conn := range workerCh {
				HandleConnection(conn, handler, cfg.Compression)
			}
		}()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("⚠️ Accept error: %v", err)
			continue
		}
		workerCh <- conn
	}
}

// HandleConnection processes a single client connection.
func HandleConnection(conn net.Conn, handler *CommandHandler, compression string) {
	defer func() {
		if err := conn.Close(); err != nil {
			util.Debug("close connection: %v", err)
		}
	}()

	clientID := uuid.NewString()
	util.Debug("client %s connected from %s", clientID, conn.RemoteAddr())

	for {
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Minute)); err != nil {
			util.Error("⚠️ SetReadDeadline error: %v", err)
			return
		}

		frame, err := util.ReadWithLength(conn)
		if err != nil {
			if err != io.EOF {
				util.Debug("client %s read error: %v", clientID, err)
			}
			return
		}

		data, err := util.DecompressMessage(frame, compression)
		if err != nil {
			util.Warn("client %s decompress error: %v", clientID, err)
			return
		}

		resp := handler.HandleFrame(data)
		if err := writeResponse(conn, resp, compression); err != nil {
			util.Warn("client %s write error: %v", clientID, err)
			return
		}
	}
}

func writeResponse(conn net.Conn, msg, compression string) error {
	data, err := util.CompressMessage([]byte(msg), compression)
	if err != nil {
		return err
	}
	return util.WriteWithLength(conn, data)
}
