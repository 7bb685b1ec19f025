package proxy

import (
	"fmt"

	abciserver "github.com/tendermint/tendermint/abci/server"
	tmlog "github.com/tendermint/tendermint/libs/log"
	tmservice "github.com/tendermint/tendermint/libs/service"

	"github.com/compactchain/compactd/libs/log"
)

// NewServer returns an ABCI server for app listening on listenAddr. transport
// is "socket" or "grpc". The server is not started.
func NewServer(listenAddr, transport string, app *Application, logger log.Logger) (tmservice.Service, error) {
	srv, err := abciserver.NewServer(listenAddr, transport, app)
	if err != nil {
		return nil, fmt.Errorf("failed to create abci server: %w", err)
	}
	srv.SetLogger(tmLogger{logger.With("module", "abci-server")})
	return srv, nil
}

// tmLogger adapts a Logger to the Tendermint logging interface.
type tmLogger struct {
	log.Logger
}

var _ tmlog.Logger = tmLogger{}

func (l tmLogger) With(keyVals ...interface{}) tmlog.Logger {
	return tmLogger{l.Logger.With(keyVals...)}
}
