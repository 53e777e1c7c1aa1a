package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookieName = "tickettracker_flash"

// Flash is a one-shot message surfaced on the next rendered page.
type Flash struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

func addFlash(c *gin.Context, category, message string) {
	flashes := readFlashes(c)
	flashes = append(flashes, Flash{Message: message, Category: category})
	writeFlashes(c, flashes)
}

// popFlashes returns the pending flash messages and clears the cookie.
func popFlashes(c *gin.Context) []Flash {
	flashes := readFlashes(c)
	if len(flashes) > 0 {
		c.SetCookie(flashCookieName, "", -1, "/", "", false, true)
	}
	return flashes
}

func readFlashes(c *gin.Context) []Flash {
	// Prefer messages accumulated during this request over the inbound cookie.
	if pending, ok := c.Get(flashCookieName); ok {
		if flashes, ok := pending.([]Flash); ok {
			return flashes
		}
	}
	cookie, err := c.Cookie(flashCookieName)
	if err != nil || cookie == "" {
		return nil
	}
	decoded, err := base64.URLEncoding.DecodeString(cookie)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if json.Unmarshal(decoded, &flashes) != nil {
		return nil
	}
	return flashes
}

func writeFlashes(c *gin.Context, flashes []Flash) {
	c.Set(flashCookieName, flashes)
	encoded, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.URLEncoding.EncodeToString(encoded),
		Path:     "/",
		HttpOnly: true,
	})
}
