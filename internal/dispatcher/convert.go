package dispatcher

import (
	"encoding/base64"

	"github.com/OSINTfan/sso-1/internal/domain/models"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
)

// UpdateParamsFromRequest parses a wire-level update submission into typed
// params. Shared by the HTTP handler and the Kafka relayer so both surfaces
// accept the identical message schema.
func UpdateParamsFromRequest(req *models.UpdateSignalRequest) (*UpdateSignalParams, error) {
	authority, err := schema.ParsePublicKey(req.Authority)
	if err != nil {
		return nil, err
	}
	signer, err := schema.ParsePublicKey(req.Signer)
	if err != nil {
		return nil, err
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return nil, err
	}
	assessment, err := req.Assessment.ToSignalAssessment()
	if err != nil {
		return nil, err
	}
	receipt, err := req.Receipt.ToTeeReceipt()
	if err != nil {
		return nil, err
	}
	return &UpdateSignalParams{
		Authority:  authority,
		AssetPair:  req.AssetPair,
		Signer:     signer,
		Signature:  sig,
		Context:    req.Context.ToMarketContext(),
		Assessment: assessment,
		Receipt:    receipt,
	}, nil
}
