package server

import (
	"fmt"
	"strings"

	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

// CommandHandler turns client frames into gateway submissions. A frame
// is either a binary batch or a line of the text protocol.
type CommandHandler struct {
	Gateway *egress.Gateway
	Stater  types.ShardStater
}

func NewCommandHandler(gw *egress.Gateway, stater types.ShardStater) *CommandHandler {
	return &CommandHandler{Gateway: gw, Stater: stater}
}

// HandleFrame dispatches one decoded frame. Binary batches are detected
// by their magic prefix; anything else is parsed as a text command.
func (ch *CommandHandler) HandleFrame(data []byte) string {
	if batch, err := util.DecodeBatch(data); err == nil {
		return ch.submit(batch.Database, batch.Messages, egress.SubmitOptions{
			Sync:   batch.Sync,
			Atomic: batch.Atomic,
		})
	}
	return ch.HandleCommand(strings.TrimSpace(string(data)))
}

func (ch *CommandHandler) HandleCommand(cmd string) string {
	resp := ch.dispatchCommand(cmd)
	ch.logCommandResult(cmd, resp)
	return resp
}

func (ch *CommandHandler) dispatchCommand(cmd string) string {
	switch {
	case cmd == "PING":
		return "PONG"
	case strings.HasPrefix(cmd, "SUBMIT"):
		return ch.handleSubmit(cmd)
	case strings.HasPrefix(cmd, "STATS"):
		return ch.handleStats(cmd)
	case cmd == "HELP":
		return helpText
	default:
		return "ERROR: unknown command"
	}
}

// SUBMIT database=<name> [sync=<true|false>] [atomic=<true|false>] [topic=<name>] [key=<k>] message=<payload>
func (ch *CommandHandler) handleSubmit(cmd string) string {
	args := parseKeyValueArgs(strings.TrimPrefix(cmd, "SUBMIT"))

	database, ok := args["database"]
	if !ok || database == "" {
		return "ERROR: missing database parameter"
	}
	payload, ok := args["message"]
	if !ok {
		return "ERROR: missing message parameter"
	}

	opts := egress.SubmitOptions{
		Sync:   util.ParseBool(args["sync"], true),
		Atomic: util.ParseBool(args["atomic"], false),
	}
	msgs := []types.Message{{
		Topic:   args["topic"],
		Key:     args["key"],
		Payload: []byte(payload),
	}}
	return ch.submit(database, msgs, opts)
}

func (ch *CommandHandler) submit(database string, msgs []types.Message, opts egress.SubmitOptions) string {
	err := ch.Gateway.Submit(database, msgs, opts)
	switch {
	case err == nil && opts.Sync:
		return "OK"
	case err == nil:
		return "ACCEPTED"
	case egress.IsRecoverable(err):
		return "RETRY: " + err.Error()
	default:
		return "ERROR: " + err.Error()
	}
}

// STATS database=<name> shard=<N>
func (ch *CommandHandler) handleStats(cmd string) string {
	args := parseKeyValueArgs(strings.TrimPrefix(cmd, "STATS"))

	database, ok := args["database"]
	if !ok || database == "" {
		return "ERROR: missing database parameter"
	}
	shardStr, ok := args["shard"]
	if !ok {
		return "ERROR: missing shard parameter"
	}
	shard := util.ParseInt(shardStr, -1)
	if shard < 0 {
		return "ERROR: invalid shard ID"
	}
	if ch.Stater == nil {
		return "ERROR: stats unavailable"
	}

	messages, bytes := ch.Stater.ShardState(database, shard)
	return fmt.Sprintf("messages=%d bytes=%d", messages, bytes)
}

func (ch *CommandHandler) logCommandResult(cmd, response string) {
	status := "SUCCESS"
	if strings.HasPrefix(response, "ERROR:") {
		status = "FAILURE"
	}
	cleanResponse := strings.ReplaceAll(response, "\n", " ")
	util.Debug("status: '%s', command: '%s' to Response '%s'", status, cmd, cleanResponse)
}

const helpText = `Commands:
  PING
  SUBMIT database=<name> [sync=<true|false>] [atomic=<true|false>] [topic=<name>] [key=<k>] message=<payload>
  STATS database=<name> shard=<N>
  HELP`

// parseKeyValueArgs splits "k=v" pairs. Everything after "message=" is
// taken verbatim so payloads may contain spaces and '=' characters.
func parseKeyValueArgs(argsStr string) map[string]string {
	result := make(map[string]string)

	messageIdx := strings.Index(argsStr, "message=")

	fields := argsStr
	if messageIdx != -1 {
		fields = argsStr[:messageIdx]
	}
	for _, part := range strings.Fields(fields) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			result[kv[0]] = kv[1]
		}
	}
	if messageIdx != -1 {
		result["message"] = strings.TrimSpace(argsStr[messageIdx+len("message="):])
	}
	return result
}
