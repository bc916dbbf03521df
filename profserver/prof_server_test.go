/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit-demo/log/logtest"
	"github.com/acronis/go-appkit-demo/testutil"
)

func TestProfServer(t *testing.T) {
	for _, gracefully := range []bool{true, false} {
		addr := testutil.GetLocalAddrWithFreeTCPPort()

		profServer := New(&Config{Enabled: true, Address: addr}, logtest.NewRecorder())
		fatalErr := make(chan error, 1)
		go profServer.Start(fatalErr)
		require.NoError(t, testutil.WaitListeningServer(addr, time.Second*3))

		resp, err := http.Get(profServer.URL + "/debug/pprof/")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		respBody, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.NotEmpty(t, respBody)

		require.NoError(t, profServer.Stop(gracefully))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}
}
