package protocol

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/vaultpass/go-vaultpass-core/metrics"
	"github.com/vaultpass/go-vaultpass-core/services"
	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// MaxChunkSize bounds a transfer chunk before base64 encoding.
const MaxChunkSize = 2 * 1024 * 1024

// Connect is the initial-pairing state machine: handshake, then the full
// encrypted vault export streamed to the extension in confirmed chunks.
type Connect struct {
	session       *session
	exportService *services.ExportService
	cipher        *services.VaultCipher
	vaultID       string
	fcmToken      string
}

func NewConnect(transport Transport, browserService *services.BrowserService, exportService *services.ExportService, cipher *services.VaultCipher, vaultID string, fcmToken string) *Connect {
	return &Connect{
		session:       newSession(transport, browserService),
		exportService: exportService,
		cipher:        cipher,
		vaultID:       vaultID,
		fcmToken:      fcmToken,
	}
}

// Run drives the session to completion. The returned Result is the only thing
// the caller observes; all errors are folded into it.
func (c *Connect) Run(ctx context.Context) Result {
	metrics.SessionStarted("connect")
	result := c.run(ctx)
	metrics.SessionClosed("connect", string(result.Status))
	return result
}

func (c *Connect) run(ctx context.Context) Result {
	s := c.session
	if err := s.handshake(ctx); err != nil {
		return s.finishWithError(err)
	}

	ciphertext, err := c.buildExportCiphertext()
	if err != nil {
		return s.finishWithError(err)
	}
	chunks := splitChunks(ciphertext, MaxChunkSize)

	newSessionIDEnc, err := s.encryptedNewSessionID()
	if err != nil {
		return s.finishWithError(err)
	}
	fcmTokenEnc := ""
	if c.fcmToken != "" {
		enc, err := util.EncryptAESGCM(s.dataKey, []byte(c.fcmToken))
		if err != nil {
			return s.finishWithError(wrapErr(CodeInternal, "failed to encrypt fcm token", err))
		}
		fcmTokenEnc = base64.StdEncoding.EncodeToString(enc)
	}

	init := types.InitTransferPayload{
		TotalChunks:     len(chunks),
		TotalSize:       int64(len(ciphertext)),
		SHA256Hex:       util.Sha256Hex(ciphertext),
		FcmTokenEnc:     fcmTokenEnc,
		NewSessionIDEnc: newSessionIDEnc,
	}
	if err := s.send(ctx, types.ActionInitTransfer, init); err != nil {
		return s.finishWithError(err)
	}
	if _, err := s.receive(ctx, types.ActionInitTransfer); err != nil {
		return s.finishWithError(err)
	}

	for index, chunk := range chunks {
		payload := types.TransferChunkPayload{
			ChunkIndex: index,
			ChunkSize:  len(chunk),
			ChunkData:  base64.StdEncoding.EncodeToString(chunk),
		}
		if err := s.send(ctx, types.ActionTransferChunk, payload); err != nil {
			return s.finishWithError(err)
		}
		msg, err := s.receive(ctx, types.ActionTransferChunk)
		if err != nil {
			return s.finishWithError(err)
		}
		var confirm types.TransferChunkConfirmPayload
		if err := json.Unmarshal(msg.Payload, &confirm); err != nil {
			return s.finishWithError(wrapErr(CodeInvalidPayload, "malformed chunk confirmation", err))
		}
		if confirm.ChunkIndex != index {
			return s.finishWithError(protocolErr(CodeMessageOutOfOrder, "chunk confirmation index mismatch"))
		}
		metrics.ChunkSent(len(chunk))
	}

	// transfer completed: the rotation happens before the success close so an
	// interrupted close never leaves the peer with a committed id we lost
	if err := s.rotate(); err != nil {
		return s.finishWithError(wrapErr(CodeInternal, "failed to rotate session id", err))
	}
	if err := s.closeWithSuccess(ctx); err != nil {
		return s.finishWithError(err)
	}
	metrics.ObserveTransfer(len(ciphertext))
	return successResult()
}

// buildExportCiphertext assembles the extension export, compresses it and
// encrypts it under DataKey. The announced SHA-256 covers this ciphertext.
func (c *Connect) buildExportCiphertext() ([]byte, error) {
	passT3, err := c.session.passKey(types.SecurityTier3)
	if err != nil {
		return nil, err
	}
	export, err := c.exportService.BuildExtensionExport(c.cipher, c.vaultID, passT3)
	if err != nil {
		if err == types.ErrVaultKeysExpired {
			return nil, wrapErr(CodeKeysExpired, "vault keys expired", err)
		}
		return nil, wrapErr(CodeInternal, "failed to build export", err)
	}
	serialized, err := json.Marshal(export)
	if err != nil {
		return nil, wrapErr(CodeInternal, "failed to encode export", err)
	}
	compressed, err := util.Gzip(serialized)
	if err != nil {
		return nil, wrapErr(CodeInternal, "failed to compress export", err)
	}
	ciphertext, err := util.EncryptAESGCM(c.session.dataKey, compressed)
	if err != nil {
		return nil, wrapErr(CodeInternal, "failed to encrypt export", err)
	}
	return ciphertext, nil
}

func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}
