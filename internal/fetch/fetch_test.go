package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostForm(t *testing.T) {
	var gotMethod, gotContentType, gotSort string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotSort = r.PostFormValue("sortby")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<table></table>"))
	}))
	defer server.Close()

	form := url.Values{"sortby": {"issue_date"}, "pageno": {"1"}}
	result, err := PostForm(context.Background(), server.URL, form, nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "issue_date", gotSort)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "<table></table>", result.HTML)
	assert.Equal(t, "text/html", result.ContentType)
}

func TestPostFormNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result, err := PostForm(context.Background(), server.URL, url.Values{}, nil)
	require.Error(t, err)

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, fetchErr.Error(), "503")
	require.NotNil(t, result, "the raw result is still returned for diagnostics")
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
}

func TestPostFormInvalidURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"empty", ""},
		{"no scheme", "example.org/list"},
		{"garbage", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PostForm(context.Background(), tt.endpoint, url.Values{}, nil)
			var fetchErr *Error
			require.True(t, errors.As(err, &fetchErr))
			assert.Contains(t, fetchErr.Error(), "invalid URL")
		})
	}
}

func TestPostFormTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	opts := &Options{Timeout: 50 * time.Millisecond, UserAgent: DefaultUserAgent}
	_, err := PostForm(context.Background(), server.URL, url.Values{}, opts)

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr), "a timeout is an ordinary fetch error")
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, DefaultUserAgent, opts.UserAgent)
}
