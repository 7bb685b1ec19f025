package types

import (
	"fmt"
	"time"
)

const (
	// CodeTypeOK is returned for a successful DeliverTx.
	CodeTypeOK uint32 = 0
	// CodeTypeRejected is returned for any DeliverTx the application refused.
	CodeTypeRejected uint32 = 1
)

// Phase names one of the five consensus phases of a block's lifecycle.
type Phase int

const (
	PhaseInitChain Phase = iota
	PhaseBeginBlock
	PhaseDeliverTx
	PhaseEndBlock
	PhaseCommit
)

func (p Phase) String() string {
	switch p {
	case PhaseInitChain:
		return "init_chain"
	case PhaseBeginBlock:
		return "begin_block"
	case PhaseDeliverTx:
		return "deliver_tx"
	case PhaseEndBlock:
		return "end_block"
	case PhaseCommit:
		return "commit"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Request is a consensus request. It is a closed set: *RequestInitChain,
// *RequestBeginBlock, *RequestDeliverTx, *RequestEndBlock and *RequestCommit.
type Request interface {
	Phase() Phase
	isRequest()
}

// Response is the reply to a Request of the same Phase. It is a closed set:
// *ResponseInitChain, *ResponseBeginBlock, *ResponseDeliverTx,
// *ResponseEndBlock and *ResponseCommit.
type Response interface {
	Phase() Phase
	isResponse()
}

type RequestInitChain struct {
	Time          time.Time
	ChainID       string
	AppStateBytes []byte
	InitialHeight int64
}

// Header is the subset of the block header the application consumes.
type Header struct {
	ChainID         string
	Height          int64
	Time            time.Time
	ProposerAddress []byte
}

type RequestBeginBlock struct {
	Hash   []byte
	Header Header
}

type RequestDeliverTx struct {
	Tx []byte
}

type RequestEndBlock struct {
	Height int64
}

type RequestCommit struct{}

type ResponseInitChain struct {
	Validators []ValidatorUpdate
	AppHash    []byte
}

type ResponseBeginBlock struct {
	Events []Event
}

type ResponseDeliverTx struct {
	Code   uint32
	Log    string
	Events []Event
}

// IsOK returns true if Code is OK.
func (r *ResponseDeliverTx) IsOK() bool { return r.Code == CodeTypeOK }

type ResponseEndBlock struct {
	ValidatorUpdates []ValidatorUpdate
	Events           []Event
}

type ResponseCommit struct {
	// Data is the application hash after the commit.
	Data         []byte
	RetainHeight int64
}

func (*RequestInitChain) Phase() Phase  { return PhaseInitChain }
func (*RequestBeginBlock) Phase() Phase { return PhaseBeginBlock }
func (*RequestDeliverTx) Phase() Phase  { return PhaseDeliverTx }
func (*RequestEndBlock) Phase() Phase   { return PhaseEndBlock }
func (*RequestCommit) Phase() Phase     { return PhaseCommit }

func (*ResponseInitChain) Phase() Phase  { return PhaseInitChain }
func (*ResponseBeginBlock) Phase() Phase { return PhaseBeginBlock }
func (*ResponseDeliverTx) Phase() Phase  { return PhaseDeliverTx }
func (*ResponseEndBlock) Phase() Phase   { return PhaseEndBlock }
func (*ResponseCommit) Phase() Phase     { return PhaseCommit }

func (*RequestInitChain) isRequest()  {}
func (*RequestBeginBlock) isRequest() {}
func (*RequestDeliverTx) isRequest()  {}
func (*RequestEndBlock) isRequest()   {}
func (*RequestCommit) isRequest()     {}

func (*ResponseInitChain) isResponse()  {}
func (*ResponseBeginBlock) isResponse() {}
func (*ResponseDeliverTx) isResponse()  {}
func (*ResponseEndBlock) isResponse()   {}
func (*ResponseCommit) isResponse()     {}

// ValidatorUpdate sets the consensus power of the validator with the given
// ed25519 public key. A power of zero removes the validator.
type ValidatorUpdate struct {
	PubKey []byte
	Power  int64
}
