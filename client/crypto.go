package client

import (
	"github.com/cvsouth/phttp-go/box"
	"github.com/cvsouth/phttp-go/request"
)

// boxCrypto lets the request pipeline seal with box.
type boxCrypto struct {
	b *box.Box
}

func (c boxCrypto) BoxRequest(message []byte, exitPeerID, requestID string, exitPublicKey []byte, counterOffset int64) (request.Session, error) {
	s, err := c.b.BoxRequest(message, exitPeerID, requestID, exitPublicKey, counterOffset)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c boxCrypto) UnboxRequest(message []byte, requestID, exitPeerID string, exitPrivateKey []byte) (request.Session, error) {
	s, err := c.b.UnboxRequest(message, requestID, exitPeerID, exitPrivateKey)
	if err != nil {
		return nil, err
	}
	return s, nil
}
