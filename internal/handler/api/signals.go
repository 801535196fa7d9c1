package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OSINTfan/sso-1/internal/dispatcher"
	"github.com/OSINTfan/sso-1/internal/domain/models"
	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
	"github.com/OSINTfan/sso-1/internal/service/ratelimit"
	"github.com/OSINTfan/sso-1/internal/store"
	pkghttp "github.com/OSINTfan/sso-1/pkg/http"
	applogger "github.com/OSINTfan/sso-1/pkg/logger"
)

// SignalsHandler exposes the instruction surface over HTTP. Every mutating
// route funnels into the dispatcher; reads go through the account cache
// first and fall back to the store.
type SignalsHandler struct {
	disp  *dispatcher.Dispatcher
	st    *store.AccountStore
	slots domrepo.SlotSource
	cache domrepo.AccountCache
	audit domrepo.AuditLog
	rl    *ratelimit.Limiter
	l     *applogger.Logger
}

func NewSignalsHandler(disp *dispatcher.Dispatcher, st *store.AccountStore, slots domrepo.SlotSource) *SignalsHandler {
	return &SignalsHandler{
		disp:  disp,
		st:    st,
		slots: slots,
		cache: domrepo.NoopCache{},
		audit: domrepo.NoopAudit{},
		rl:    ratelimit.New(),
	}
}

// SetCache injects the read-side account cache.
func (h *SignalsHandler) SetCache(c domrepo.AccountCache) { h.cache = c }

// SetAudit injects the audit log for health reporting.
func (h *SignalsHandler) SetAudit(a domrepo.AuditLog) { h.audit = a }

// SetLogger injects a structured logger.
func (h *SignalsHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/api/v1")

	v1.POST("/signals", h.InitSignalAccount)
	v1.POST("/signals/update", h.UpdateSignal)
	v1.POST("/signals/revoke", h.RevokeSignal)
	v1.GET("/signals/:pair", h.GetSignal)

	v1.GET("/config", h.GetConfig)
	v1.GET("/slot", h.GetSlot)

	admin := v1.Group("/admin", h.rateLimit("admin", 10, 2))
	admin.POST("/config", h.InitConfigRoute)
	admin.PATCH("/config", h.UpdateConfig)
	admin.POST("/providers", h.RegisterProvider)
	admin.POST("/providers/revoke", h.RevokeProvider)
	admin.POST("/pause", h.Pause)

	e.GET("/healthz", h.Health)
}

// statusForCode maps stable rejection codes to HTTP status. Verification
// failures are 422: the request was well-formed, the payload failed the
// protocol's checks.
func statusForCode(code string) int {
	switch code {
	case "UNAUTHORIZED":
		return http.StatusForbidden
	case "NOT_FOUND":
		return http.StatusNotFound
	case "ALREADY_INITIALIZED", "ALREADY_REGISTERED", "ACCOUNT_REVOKED",
		"PROTOCOL_PAUSED", "CONFIG_NOT_INITIALIZED", "INVALID_TRANSITION":
		return http.StatusConflict
	case "UNKNOWN_INSTRUCTION", "BAD_PARAMS":
		return http.StatusBadRequest
	case "INTERNAL":
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

// rateLimit guards a route group with a shared per-client token bucket.
func (h *SignalsHandler) rateLimit(op string, capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !h.rl.Allow(c.RealIP()+":"+op, capacity, refillPerSec) {
				if h.l != nil {
					h.l.Warn("signals."+op+" rate_limited", applogger.String("remote", c.RealIP()))
				}
				return c.NoContent(http.StatusTooManyRequests)
			}
			return next(c)
		}
	}
}

func (h *SignalsHandler) rejection(c echo.Context, err error) error {
	code := dispatcher.ErrorCode(err)
	appErr := pkghttp.NewAppError(code, "", err.Error(), statusForCode(code))
	return pkghttp.AppErrorResponse(c, appErr)
}

func (h *SignalsHandler) InitSignalAccount(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":init", 5, 1) {
		if h.l != nil {
			h.l.Warn("signals.init rate_limited", applogger.String("remote", c.RealIP()))
		}
		return c.NoContent(http.StatusTooManyRequests)
	}
	req := new(models.InitSignalAccountRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	authority, err := schema.ParsePublicKey(req.Authority)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	res, err := h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind: dispatcher.KindInitializeSignalAccount,
		Params: &dispatcher.InitializeSignalAccountParams{
			Caller:    authority,
			Authority: authority,
			AssetPair: req.AssetPair,
		},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	view := models.NewSignalView(res.Account, res.AccountKey, h.slots.CurrentSlot())
	return pkghttp.CreatedResponse(c, view)
}

func (h *SignalsHandler) UpdateSignal(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":update", 20, 10) {
		if h.l != nil {
			h.l.Warn("signals.update rate_limited", applogger.String("remote", c.RealIP()))
		}
		return c.NoContent(http.StatusTooManyRequests)
	}
	req := new(models.UpdateSignalRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	params, err := dispatcher.UpdateParamsFromRequest(req)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	res, err := h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind:   dispatcher.KindUpdateSignal,
		Params: params,
	})
	if err != nil {
		return h.rejection(c, err)
	}
	view := models.NewSignalView(res.Account, res.AccountKey, h.slots.CurrentSlot())
	return pkghttp.SuccessResponse(c, view)
}

func (h *SignalsHandler) RevokeSignal(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":revoke", 5, 1) {
		if h.l != nil {
			h.l.Warn("signals.revoke rate_limited", applogger.String("remote", c.RealIP()))
		}
		return c.NoContent(http.StatusTooManyRequests)
	}
	req := new(models.RevokeSignalRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	authority, err := schema.ParsePublicKey(req.Authority)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	res, err := h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind: dispatcher.KindRevokeSignal,
		Params: &dispatcher.RevokeSignalParams{
			Caller:    authority,
			Authority: authority,
			AssetPair: req.AssetPair,
		},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.SuccessResponse(c, map[string]any{
		"account_key": res.AccountKey.String(),
		"revoked":     res.Changed,
	})
}

// GetSignal reads one account. Revoked accounts remain readable; consumers
// decide based on status and validity.
func (h *SignalsHandler) GetSignal(c echo.Context) error {
	pairStr := c.Param("pair")
	authority, err := schema.ParsePublicKey(c.QueryParam("authority"))
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError("authority must be a 64-char hex key"))
	}
	pair, err := schema.EncodeAssetPair(pairStr)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}
	key := schema.DeriveAccountKey(pair, authority)

	acct := h.fromCache(c, key)
	if acct == nil {
		acct, err = h.st.GetSignal(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return pkghttp.NotFoundResponse(c, pkghttp.NotFoundError("no signal account for pair and authority"))
			}
			return pkghttp.InternalServerErrorResponse(c)
		}
		if err := h.cache.Put(c.Request().Context(), key, schema.EncodeSignalAccount(acct)); err != nil && h.l != nil {
			h.l.Warn("signals.get cache_put_error", applogger.Error(err))
		}
	}
	// ?slot= evaluates validity at an arbitrary slot, e.g. for backtesting
	atSlot := pkghttp.ParseUint64Default(c.QueryParam("slot"), h.slots.CurrentSlot())
	view := models.NewSignalView(acct, key, atSlot)
	return pkghttp.SuccessResponse(c, view)
}

func (h *SignalsHandler) fromCache(c echo.Context, key schema.Digest) *schema.SignalAccount {
	raw, err := h.cache.Get(c.Request().Context(), key)
	if err != nil {
		if !errors.Is(err, domrepo.ErrCacheMiss) && h.l != nil {
			h.l.Warn("signals.get cache_get_error", applogger.Error(err))
		}
		return nil
	}
	acct, err := schema.DecodeSignalAccount(raw)
	if err != nil {
		if h.l != nil {
			h.l.Warn("signals.get cache_decode_error", applogger.Error(err))
		}
		return nil
	}
	return acct
}

func (h *SignalsHandler) GetConfig(c echo.Context) error {
	cfg, err := h.st.Config()
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.SuccessResponse(c, configView(cfg))
}

func (h *SignalsHandler) GetSlot(c echo.Context) error {
	return pkghttp.SuccessResponse(c, map[string]uint64{"current_slot": h.slots.CurrentSlot()})
}

func (h *SignalsHandler) InitConfigRoute(c echo.Context) error {
	req := new(initConfigRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	admin, err := schema.ParsePublicKey(req.Admin)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	res, err := h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind: dispatcher.KindInitializeConfig,
		Params: &dispatcher.InitializeConfigParams{
			Config: schema.Config{
				Admin:                  admin,
				MinWindowSlots:         req.MinWindowSlots,
				MaxWindowSlots:         req.MaxWindowSlots,
				MaxAttestationAgeSlots: req.MaxAttestationAgeSlots,
				MinSourceCount:         req.MinSourceCount,
				MinConfidence:          req.MinConfidence,
				ProtocolVersion:        uint16(schema.SpecVersion),
			},
		},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.CreatedResponse(c, configView(*res.Config))
}

type initConfigRequest struct {
	Admin                  string `json:"admin" validate:"required,len=64,hexadecimal"`
	MinWindowSlots         uint64 `json:"min_window_slots" validate:"required"`
	MaxWindowSlots         uint64 `json:"max_window_slots" validate:"required"`
	MaxAttestationAgeSlots uint64 `json:"max_attestation_age_slots" validate:"required"`
	MinSourceCount         uint8  `json:"min_source_count" validate:"required"`
	MinConfidence          uint8  `json:"min_confidence" validate:"lte=100"`
}

func (h *SignalsHandler) UpdateConfig(c echo.Context) error {
	req := new(models.UpdateConfigRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	admin, err := schema.ParsePublicKey(req.Admin)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	res, err := h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind: dispatcher.KindUpdateConfig,
		Params: &dispatcher.UpdateConfigParams{
			Admin:                  admin,
			MinWindowSlots:         req.MinWindowSlots,
			MaxWindowSlots:         req.MaxWindowSlots,
			MaxAttestationAgeSlots: req.MaxAttestationAgeSlots,
			MinSourceCount:         req.MinSourceCount,
			MinConfidence:          req.MinConfidence,
		},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.SuccessResponse(c, configView(*res.Config))
}

func (h *SignalsHandler) RegisterProvider(c echo.Context) error {
	req := new(models.RegisterProviderRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	admin, err := schema.ParsePublicKey(req.Admin)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}
	mr, err := schema.ParseDigest(req.MrEnclave)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}
	signer, err := schema.ParsePublicKey(req.EnclaveSigner)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	_, err = h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind: dispatcher.KindRegisterProvider,
		Params: &dispatcher.RegisterProviderParams{
			Admin:              admin,
			MrEnclave:          mr,
			EnclaveSigner:      signer,
			MinPlatformVersion: req.MinPlatformVersion,
		},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.CreatedResponse(c, map[string]string{"mr_enclave": req.MrEnclave})
}

func (h *SignalsHandler) RevokeProvider(c echo.Context) error {
	req := new(models.RevokeProviderRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	admin, err := schema.ParsePublicKey(req.Admin)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}
	mr, err := schema.ParseDigest(req.MrEnclave)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	_, err = h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind:   dispatcher.KindRevokeProvider,
		Params: &dispatcher.RevokeProviderParams{Admin: admin, MrEnclave: mr},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.SuccessResponse(c, map[string]string{"mr_enclave": req.MrEnclave})
}

func (h *SignalsHandler) Pause(c echo.Context) error {
	req := new(models.PauseRequest)
	if errs := pkghttp.ReadAndValidateRequest(c, req); errs != nil {
		return pkghttp.BadRequestResponse(c, errs)
	}
	admin, err := schema.ParsePublicKey(req.Admin)
	if err != nil {
		return pkghttp.BadRequestResponse(c, pkghttp.BadRequestError(err.Error()))
	}

	_, err = h.disp.Dispatch(c.Request().Context(), dispatcher.Instruction{
		Kind:   dispatcher.KindPauseProtocol,
		Params: &dispatcher.PauseProtocolParams{Admin: admin, Paused: req.Paused},
	})
	if err != nil {
		return h.rejection(c, err)
	}
	return pkghttp.SuccessResponse(c, map[string]bool{"paused": req.Paused})
}

func (h *SignalsHandler) Health(c echo.Context) error {
	if err := h.audit.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "audit": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func configView(cfg schema.Config) map[string]any {
	return map[string]any{
		"admin":                     cfg.Admin.String(),
		"min_window_slots":          cfg.MinWindowSlots,
		"max_window_slots":          cfg.MaxWindowSlots,
		"max_attestation_age_slots": cfg.MaxAttestationAgeSlots,
		"min_source_count":          cfg.MinSourceCount,
		"min_confidence":            cfg.MinConfidence,
		"paused":                    cfg.Paused,
		"protocol_version":          cfg.ProtocolVersion,
		"total_signals":             cfg.TotalSignals,
		"total_providers":           cfg.TotalProviders,
	}
}
