package session

import (
	"crypto/tls"
	"net/http"
	"net/url"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/net/http/httpproxy"
)

func newClient(conf *Config) (*http.Client, error) {
	proxy, err := getProxy(conf.Proxy)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           proxy,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: conf.Insecure},
		},
		// the login response carries the session cookie; never follow it elsewhere
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// getProxy uses the explicit proxy URL when set and falls back to the environment
func getProxy(proxy string) (func(*http.Request) (*url.URL, error), error) {
	if len(proxy) > 0 {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, errors.Wrap(err, "bad proxy url")
		}
		log.Debugf("proxy set to: %s", proxyURL)
		return http.ProxyURL(proxyURL), nil
	}

	conf := httpproxy.FromEnvironment()
	if len(conf.HTTPProxy) > 0 || len(conf.HTTPSProxy) > 0 {
		log.WithFields(log.Fields{
			"http_proxy":  conf.HTTPProxy,
			"https_proxy": conf.HTTPSProxy,
			"no_proxy":    conf.NoProxy,
		}).Debug("proxy info from environment")
	}

	return http.ProxyFromEnvironment, nil
}
