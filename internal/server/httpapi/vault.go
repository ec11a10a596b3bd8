package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/services"
)

// VaultStore is the slice of the vault service the HTTP layer needs.
type VaultStore interface {
	List(ctx context.Context, userID string) (*models.Vault, []*services.RevealedEntry, error)
	AddCredential(ctx context.Context, userID string, in services.AddCredentialInput) (*models.Vault, error)
	UpdateCredential(ctx context.Context, userID, entryID string, in services.UpdateCredentialInput) (*services.RevealedEntry, *models.Vault, error)
	GetCredential(ctx context.Context, userID, entryID string) (*services.RevealedEntry, error)
	DeleteCredential(ctx context.Context, userID, entryID string) (*models.Vault, error)
	Import(ctx context.Context, userID string, items []services.ImportItem) (int, *models.Vault, error)
}

type VaultHandler struct {
	vault  VaultStore
	logger logging.Logger
}

func NewVaultHandler(vault VaultStore, logger logging.Logger) *VaultHandler {
	return &VaultHandler{vault: vault, logger: logger.With("module", "vault_handler")}
}

type entryResponse struct {
	ID       string `json:"id"`
	Site     string `json:"site"`
	Username string `json:"username"`

	// Password carries the mask, the revealed plaintext, or legacy
	// plaintext; raw cipher tokens never leave the service.
	Password  string    `json:"passwordEncrypted"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type vaultResponse struct {
	ID      string          `json:"id"`
	Entries []entryResponse `json:"entries"`
}

// maskedVault renders every secret as the mask. Used by responses that
// return the vault as a side effect of a non-reveal operation.
func maskedVault(v *models.Vault) vaultResponse {
	resp := vaultResponse{ID: v.ID, Entries: make([]entryResponse, 0, len(v.Entries))}
	for _, e := range v.Entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e, services.MaskedSecret))
	}
	return resp
}

func toEntryResponse(e *models.CredentialEntry, secret string) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Site:      e.Site,
		Username:  e.Username,
		Password:  secret,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type addCredentialRequest struct {
	Site     string `json:"site"`
	Username string `json:"username"`
	Password string `json:"passwordEncrypted"`
	Notes    string `json:"notes"`
}

// Add handles POST /vault/add.
func (h *VaultHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req addCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	vault, err := h.vault.AddCredential(r.Context(), userID, services.AddCredentialInput{
		Site:     req.Site,
		Username: req.Username,
		Secret:   req.Password,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, maskedVault(vault))
}

// List handles GET /vault/vault. Secrets are returned decrypted; an entry
// whose ciphertext cannot be decrypted is masked, not dropped.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	vault, revealed, err := h.vault.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := vaultResponse{ID: vault.ID, Entries: make([]entryResponse, 0, len(revealed))}
	for _, re := range revealed {
		resp.Entries = append(resp.Entries, toEntryResponse(re.Entry, re.Secret))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /vault/{passwordId}: the reveal path. Runs behind the
// sensitive gate.
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	entryID := chi.URLParam(r, "passwordId")

	revealed, err := h.vault.GetCredential(r.Context(), userID, entryID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(revealed.Entry, revealed.Secret))
}

type updateCredentialRequest struct {
	Site     *string `json:"site"`
	Username *string `json:"username"`
	Password *string `json:"passwordEncrypted"`
	Notes    *string `json:"notes"`
}

// Update handles PUT /vault/update/{passwordId}. The response reveals the
// updated entry and masks everything else. Runs behind the sensitive gate.
func (h *VaultHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	entryID := chi.URLParam(r, "passwordId")

	var req updateCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, vault, err := h.vault.UpdateCredential(r.Context(), userID, entryID, services.UpdateCredentialInput{
		Site:     req.Site,
		Username: req.Username,
		Secret:   req.Password,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := vaultResponse{ID: vault.ID, Entries: make([]entryResponse, 0, len(vault.Entries))}
	for _, e := range vault.Entries {
		if e.ID == updated.Entry.ID {
			resp.Entries = append(resp.Entries, toEntryResponse(updated.Entry, updated.Secret))
			continue
		}
		resp.Entries = append(resp.Entries, toEntryResponse(e, services.MaskedSecret))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /vault/delete/{passwordId}.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	entryID := chi.URLParam(r, "passwordId")

	vault, err := h.vault.DeleteCredential(r.Context(), userID, entryID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, maskedVault(vault))
}

type importItemRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Note     string `json:"note"`
}

type importRequest struct {
	Passwords []importItemRequest `json:"passwords"`
}

type importResponse struct {
	Message  string        `json:"message"`
	Imported int           `json:"imported"`
	Vault    vaultResponse `json:"vault"`
}

// Import handles POST /vault/import-passwords.
func (h *VaultHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	items := make([]services.ImportItem, 0, len(req.Passwords))
	for _, it := range req.Passwords {
		items = append(items, services.ImportItem{
			URL:      it.URL,
			Username: it.Username,
			Password: it.Password,
			Note:     it.Note,
		})
	}

	count, vault, err := h.vault.Import(r.Context(), userID, items)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "credentials imported", "user_id", userID, "count", count)
	writeJSON(w, http.StatusOK, importResponse{
		Message:  fmt.Sprintf("imported %d passwords", count),
		Imported: count,
		Vault:    maskedVault(vault),
	})
}
