package handler

import (
	"fmt"
	"net/http"

	"github.com/b1ank002/ZappkaApp/internal/attest"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/payment"
	"github.com/b1ank002/ZappkaApp/internal/session"

	"github.com/gin-gonic/gin"
)

type generateCodeRequest struct {
	UserAddress string `json:"userAddress" binding:"required"`
}

type verifyRequest struct {
	SessionID  string `json:"sessionId" binding:"required"`
	ZappAmount int64  `json:"zappAmount" binding:"required"`
}

type redeemRequest struct {
	SessionID string             `json:"sessionId" binding:"required"`
	Signature attest.Attestation `json:"signature" binding:"required"`

	// Optional echoes of the verified claim; rejected when they disagree.
	ZappCode   string `json:"zappCode"`
	ZappAmount int64  `json:"zappAmount"`
}

func (h *Handler) generateCode(c *gin.Context) {
	var req generateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "User address is required", "invalid_input")
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), req.UserAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"sessionId":     sess.ID,
		"zappCode":      sess.Code,
		"createdAt":     sess.CreatedAt,
		"instructions":  h.instructions(sess.Code),
		"zappkaAccount": h.opts.ZappkaAccount,
	})
}

func (h *Handler) instructions(code string) gin.H {
	return gin.H{
		"step1": "Open the Zappka app on your phone",
		"step2": `Go to "Przelewy i historia żappsów" (Transfers and Zapps history)`,
		"step3": `Tap "Wyślij przelew" (Send transfer)`,
		"step4": fmt.Sprintf("Send any amount to: %s", h.opts.ZappkaAccount),
		"step5": fmt.Sprintf("Include this code in the description: %s", code),
		"step6": "Complete the payment and return here",
	}
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Session ID and Zapp amount are required", "invalid_input")
		return
	}

	out, err := h.sessions.Verify(c.Request.Context(), req.SessionID, req.ZappAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeVerification(c, out, "")
}

// manualVerify lets an operator confirm a transfer the bank feed missed.
// The session must still be pending.
func (h *Handler) manualVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Session ID and Zapp amount are required", "invalid_input")
		return
	}

	out, err := h.sessions.VerifyWith(c.Request.Context(), req.SessionID, req.ZappAmount, payment.Approve)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Warn("session manually verified", map[string]any{
		"session_id":  req.SessionID,
		"zapp_amount": req.ZappAmount,
		"client_ip":   c.ClientIP(),
	})
	h.writeVerification(c, out, "Manually verified")
}

func (h *Handler) writeVerification(c *gin.Context, out session.VerificationOutcome, message string) {
	if !out.Verified {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   out.Reason,
			"code":    "verification_failed",
			"session": out.Session.View(),
		})
		return
	}

	amount := *out.Session.Amount
	contractData := gin.H{
		"zappCode":   out.Session.Code,
		"zappAmount": amount,
		"signature":  out.Attestation,
	}

	body := gin.H{
		"success":      true,
		"sessionId":    out.Session.ID,
		"signature":    out.Attestation,
		"scheme":       h.sessions.Signer().Scheme(),
		"zappCode":     out.Session.Code,
		"zappAmount":   amount,
		"tokenAmount":  h.rate.Tokens(amount),
		"contractData": contractData,
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Session ID and signature are required", "invalid_input")
		return
	}

	if req.ZappCode != "" || req.ZappAmount != 0 {
		sess, err := h.sessions.Get(req.SessionID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !claimMatches(sess, req) {
			abortWithError(c, http.StatusBadRequest, "Zapp code or amount does not match the session", "invalid_input")
			return
		}
	}

	res, err := h.redeemer.Redeem(c.Request.Context(), req.SessionID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Tokens redeemed successfully!",
		"txHash":      res.Receipt.TxReference,
		"blockNumber": res.Receipt.BlockHeight,
		"gasUsed":     res.Receipt.FeeUsed,
		"zappCode":    res.Session.Code,
		"zappAmount":  *res.Session.Amount,
		"tokenAmount": res.TokenAmount,
		"session":     res.Session.View(),
	})
}

func claimMatches(sess session.Session, req redeemRequest) bool {
	if req.ZappCode != "" && req.ZappCode != sess.Code {
		return false
	}
	if req.ZappAmount != 0 && (sess.Amount == nil || *sess.Amount != req.ZappAmount) {
		return false
	}
	return true
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": sess.View(),
	})
}
