package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/server/auth"
	"github.com/dmitrijs2005/typerank/internal/server/bindings"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
)

const maxLeaderboardLimit = 100

type joinRequest struct {
	Username   string `json:"username" binding:"required"`
	Credential string `json:"credential" binding:"required"`
}

type leaderboardEntry struct {
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleLeaderboard renders the admitted-region profiles sorted by score,
// accuracy, then recency.
func (s *Server) handleLeaderboard(c *gin.Context) {
	// Absent limit means the full list.
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLeaderboardLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [1, 100]"})
			return
		}
		limit = n
	}

	list, err := s.manager.Profiles().LoadAll(c.Request.Context())
	if err != nil {
		s.logger.Error(c.Request.Context(), "loading profiles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	admitted := make([]profiles.Profile, 0, len(list))
	for _, p := range list {
		if p.Region == s.config.AdmittedCountry {
			admitted = append(admitted, p)
		}
	}
	profiles.SortLeaderboard(admitted)
	if limit > 0 && len(admitted) > limit {
		admitted = admitted[:limit]
	}

	users := make([]leaderboardEntry, 0, len(admitted))
	for _, p := range admitted {
		users = append(users, leaderboardEntry{
			Username:  p.Username,
			Score:     p.Score,
			Accuracy:  p.Accuracy,
			Timestamp: p.Timestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users":       users,
		"generatedAt": time.Now().UTC(),
	})
}

// handleJoin maps the join workflow outcomes onto HTTP statuses. Region
// admission is checked before anything else so a denied client never
// reaches the stores.
func (s *Server) handleJoin(c *gin.Context) {
	ctx := c.Request.Context()

	if !s.gate.IsAdmitted(ctx, c.Request) {
		s.writeJoinError(c, common.ErrRegionDenied)
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and credential are required"})
		return
	}

	res, err := s.joiner.Join(ctx, req.Username, req.Credential)
	if err != nil {
		s.writeJoinError(c, err)
		return
	}

	token, err := auth.GenerateToken(res.Username, []byte(s.config.SecretKey), s.config.SessionTokenValidityDuration)
	if err != nil {
		s.logger.Error(ctx, "token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username": res.Username,
		"outcome":  res.Outcome.String(),
		"token":    token,
	})
}

// writeJoinError maps a join workflow error onto its HTTP status.
func (s *Server) writeJoinError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrBadInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username or credential"})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "credential rejected"})
	case errors.Is(err, common.ErrRegionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "region not admitted"})
	case errors.Is(err, common.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
	default:
		s.logger.Error(c.Request.Context(), "join failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleMe resolves the session token back to its username and, when one
// exists, the stored profile row.
func (s *Server) handleMe(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	username, err := auth.GetUsernameFromToken(token, []byte(s.config.SecretKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	resp := gin.H{"username": username}
	if list, err := s.manager.Profiles().LoadAll(c.Request.Context()); err == nil {
		for _, p := range list {
			if profiles.SameUsername(p.Username, username) {
				resp["profile"] = p
				break
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleAdminListBindings exposes the binding table with credential
// digests only; the raw credential never leaves the store.
func (s *Server) handleAdminListBindings(c *gin.Context) {
	list, err := s.manager.Bindings().List(c.Request.Context())
	if err != nil {
		s.logger.Error(c.Request.Context(), "listing bindings failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type row struct {
		Username string `json:"username"`
		Digest   string `json:"digest"`
	}
	rows := make([]row, 0, len(list))
	for _, b := range list {
		rows = append(rows, row{Username: b.Username, Digest: b.Digest})
	}
	c.JSON(http.StatusOK, gin.H{"bindings": rows})
}

// handleAdminDeleteBinding removes a user entirely: the binding and, if
// present, the profile row.
func (s *Server) handleAdminDeleteBinding(c *gin.Context) {
	ctx := c.Request.Context()
	username := bindings.NormalizeUsername(c.Param("username"))

	if err := s.manager.Bindings().Delete(ctx, username); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown username"})
			return
		}
		s.logger.Error(ctx, "binding delete failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	list, err := s.manager.Profiles().LoadAll(ctx)
	if err == nil {
		kept := make([]profiles.Profile, 0, len(list))
		for _, p := range list {
			if !profiles.SameUsername(p.Username, username) {
				kept = append(kept, p)
			}
		}
		if len(kept) != len(list) {
			err = s.manager.Profiles().SaveAll(ctx, kept)
		}
	}
	if err != nil {
		// The binding is gone; the orphaned profile is swept up later.
		s.logger.Error(ctx, "profile cleanup failed", "username", username, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"deleted": username})
}

// handleAdminSweep runs one sweep synchronously.
func (s *Server) handleAdminSweep(c *gin.Context) {
	if err := s.sweeper.Sweep(c.Request.Context()); err != nil {
		s.logger.Error(c.Request.Context(), "manual sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}
