package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/go-relay/util"
	"github.com/google/uuid"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "Relay server address")
	compression := flag.String("compression", "none", "Frame compression (none, gzip, lz4)")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	clientID := uuid.NewString()
	fmt.Printf("connected to %s (client %s)\n", *addr, clientID)
	fmt.Println("type HELP for commands, QUIT to exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "QUIT") {
			return
		}

		frame, err := util.CompressMessage([]byte(line), *compression)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compress: %v\n", err)
			continue
		}
		if err := util.WriteWithLength(conn, frame); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}

		resp, err := util.ReadWithLength(conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "receive: %v\n", err)
			return
		}
		data, err := util.DecompressMessage(resp, *compression)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decompress: %v\n", err)
			return
		}
		fmt.Println(string(data))
	}
}
