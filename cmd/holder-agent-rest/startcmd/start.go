/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/walletkit/holder-agent-go/pkg/client/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/controller"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/internal/metrics"
	"github.com/walletkit/holder-agent-go/pkg/walletcore/cached"
	"github.com/walletkit/holder-agent-go/pkg/walletcore/httpbinding"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "HOLDER_AGENT_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "HOLDER_AGENT_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	// wallet core flags.
	coreURLFlagName      = "core-url"
	coreURLEnvKey        = "HOLDER_AGENT_CORE_URL"
	coreURLFlagShorthand = "c"
	coreURLFlagUsage     = "Base URL of the wallet core HTTP API." +
		" Alternatively, this can be set with the following environment variable: " + coreURLEnvKey

	coreTimeoutFlagName  = "core-timeout"
	coreTimeoutEnvKey    = "HOLDER_AGENT_CORE_TIMEOUT"
	coreTimeoutFlagUsage = "Timeout of a single wallet core call, e.g. 10s. Defaults to 10s." +
		" Alternatively, this can be set with the following environment variable: " + coreTimeoutEnvKey

	coreRetriesFlagName  = "core-retries"
	coreRetriesEnvKey    = "HOLDER_AGENT_CORE_RETRIES"
	coreRetriesFlagUsage = "Number of retries of idempotent wallet core reads. Defaults to 2." +
		" Alternatively, this can be set with the following environment variable: " + coreRetriesEnvKey

	coreWaitTimeoutFlagName  = "core-wait-timeout"
	coreWaitTimeoutEnvKey    = "HOLDER_AGENT_CORE_WAIT_TIMEOUT"
	coreWaitTimeoutFlagUsage = "Total time in seconds to wait until the wallet core is available before giving up." +
		" Defaults to 0 (do not wait)." +
		" Alternatively, this can be set with the following environment variable: " + coreWaitTimeoutEnvKey

	// holder context flags.
	organisationIDFlagName      = "organisation-id"
	organisationIDEnvKey        = "HOLDER_AGENT_ORGANISATION_ID"
	organisationIDFlagShorthand = "o"
	organisationIDFlagUsage     = "Organisation whose credentials are used for proofs." +
		" Alternatively, this can be set with the following environment variable: " + organisationIDEnvKey

	didIDFlagName  = "did-id"
	didIDEnvKey    = "HOLDER_AGENT_DID_ID"
	didIDFlagUsage = "Holder DID used for submissions (optional)." +
		" Alternatively, this can be set with the following environment variable: " + didIDEnvKey

	keyIDFlagName  = "key-id"
	keyIDEnvKey    = "HOLDER_AGENT_KEY_ID"
	keyIDFlagUsage = "Holder key used for submissions (optional)." +
		" Alternatively, this can be set with the following environment variable: " + keyIDEnvKey

	credentialCacheSizeFlagName  = "credential-cache-size"
	credentialCacheSizeEnvKey    = "HOLDER_AGENT_CREDENTIAL_CACHE_SIZE"
	credentialCacheSizeFlagUsage = "Number of credential records kept in memory. Defaults to 256." +
		" Alternatively, this can be set with the following environment variable: " + credentialCacheSizeEnvKey

	// webhook url flag.
	agentWebhookFlagName      = "webhook-url"
	agentWebhookEnvKey        = "HOLDER_AGENT_WEBHOOK_URL"
	agentWebhookFlagShorthand = "w"
	agentWebhookFlagUsage     = "URL to send notifications to." +
		" This flag can be repeated, allowing for multiple listeners." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentWebhookEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "HOLDER_AGENT_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = ""
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = ""
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	metricsPath = "/metrics"

	defaultCoreTimeout  = 10 * time.Second
	defaultCoreRetries  = 2
	coreRetryInterval   = 500 * time.Millisecond
	defaultCacheSize    = 256
	coreProbeInterval   = time.Second
	coreProbeCallLimit  = 5 * time.Second
	minCredentialsProbe = 1
)

var (
	errMissingHost    = errors.New("host not provided")
	errMissingCoreURL = errors.New("wallet core url not provided")
	logger            = log.New("holder-agent/agent-rest")
)

type agentParameters struct {
	server                  server
	host, token             string
	tlsCertFile, tlsKeyFile string
	webhookURLs             []string
	core                    *coreParam
	holder                  proofshare.Context
	cacheSize               int
}

type coreParam struct {
	url         string
	timeout     time.Duration
	retries     uint64
	waitTimeout uint64
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router) // nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen
	return &cobra.Command{
		Use:   "start",
		Short: "Start a holder agent",
		Long:  `Start the proof sharing controller API of a holder agent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, agentTokenFlagName, agentTokenEnvKey, true)
			if err != nil {
				return err
			}

			core, err := getCoreParam(cmd)
			if err != nil {
				return err
			}

			holder, err := getHolderContext(cmd)
			if err != nil {
				return err
			}

			cacheSize, err := getIntVar(cmd, credentialCacheSizeFlagName, credentialCacheSizeEnvKey, defaultCacheSize)
			if err != nil {
				return err
			}

			webhookURLs, err := getUserSetVars(cmd, agentWebhookFlagName, agentWebhookEnvKey, true)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:      server,
				host:        host,
				token:       token,
				core:        core,
				holder:      holder,
				cacheSize:   cacheSize,
				webhookURLs: webhookURLs,
				tlsCertFile: tlsCertFile,
				tlsKeyFile:  tlsKeyFile,
			}

			return startAgent(parameters)
		},
	}
}

func getCoreParam(cmd *cobra.Command) (*coreParam, error) {
	p := &coreParam{timeout: defaultCoreTimeout, retries: defaultCoreRetries}

	var err error

	p.url, err = getUserSetVar(cmd, coreURLFlagName, coreURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	timeout, err := getUserSetVar(cmd, coreTimeoutFlagName, coreTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if timeout != "" {
		p.timeout, err = time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse core timeout %s: %w", timeout, err)
		}
	}

	p.retries, err = getUintVar(cmd, coreRetriesFlagName, coreRetriesEnvKey, defaultCoreRetries)
	if err != nil {
		return nil, err
	}

	p.waitTimeout, err = getUintVar(cmd, coreWaitTimeoutFlagName, coreWaitTimeoutEnvKey, 0)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func getHolderContext(cmd *cobra.Command) (proofshare.Context, error) {
	var (
		holder proofshare.Context
		err    error
	)

	holder.OrganisationID, err = getUserSetVar(cmd, organisationIDFlagName, organisationIDEnvKey, false)
	if err != nil {
		return holder, err
	}

	holder.DidID, err = getUserSetVar(cmd, didIDFlagName, didIDEnvKey, true)
	if err != nil {
		return holder, err
	}

	holder.KeyID, err = getUserSetVar(cmd, keyIDFlagName, keyIDEnvKey, true)

	return holder, err
}

func getUintVar(cmd *cobra.Command, flagName, envKey string, defaultValue uint64) (uint64, error) {
	v, err := getUserSetVar(cmd, flagName, envKey, true)
	if err != nil {
		return 0, err
	}

	if v == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s %s: %w", flagName, v, err)
	}

	return value, nil
}

func getIntVar(cmd *cobra.Command, flagName, envKey string, defaultValue int) (int, error) {
	v, err := getUintVar(cmd, flagName, envKey, uint64(defaultValue))
	if err != nil {
		return 0, err
	}

	return int(v), nil
}

func createFlags(startCmd *cobra.Command) {
	// agent host flag
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)

	// agent token flag
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)

	// wallet core
	startCmd.Flags().StringP(coreURLFlagName, coreURLFlagShorthand, "", coreURLFlagUsage)
	startCmd.Flags().StringP(coreTimeoutFlagName, "", "", coreTimeoutFlagUsage)
	startCmd.Flags().StringP(coreRetriesFlagName, "", "", coreRetriesFlagUsage)
	startCmd.Flags().StringP(coreWaitTimeoutFlagName, "", "", coreWaitTimeoutFlagUsage)

	// holder context
	startCmd.Flags().StringP(organisationIDFlagName, organisationIDFlagShorthand, "", organisationIDFlagUsage)
	startCmd.Flags().StringP(didIDFlagName, "", "", didIDFlagUsage)
	startCmd.Flags().StringP(keyIDFlagName, "", "", keyIDFlagUsage)

	// credential cache
	startCmd.Flags().StringP(credentialCacheSizeFlagName, "", "", credentialCacheSizeFlagUsage)

	// webhook url flag
	startCmd.Flags().StringSliceP(agentWebhookFlagName, agentWebhookFlagShorthand, []string{}, agentWebhookFlagUsage)

	// log level
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// tls cert file
	startCmd.Flags().StringP(agentTLSCertFileFlagName,
		agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)

	// tls key file
	startCmd.Flags().StringP(agentTLSKeyFileFlagName,
		agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, fmt.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startAgent(parameters *agentParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	router, err := createRouter(parameters)
	if err != nil {
		return err
	}

	logger.Infof("Starting holder agent rest on host [%s]", parameters.host)
	// start server on given port and serve using given handlers
	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start holder agent rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func createRouter(parameters *agentParameters) (*mux.Router, error) {
	core, err := createCore(parameters)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := proofshare.New(core, proofshare.WithMetrics(metrics.New(registry)))

	// get all HTTP REST API handlers available for controller API
	handlers := controller.GetRESTHandlers(client,
		controller.WithWebhookURLs(parameters.webhookURLs...),
		controller.WithHolderContext(parameters.holder),
		controller.WithCoreTimeout(parameters.core.timeout))

	router := mux.NewRouter()

	if parameters.token != "" {
		router.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	router.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router, nil
}

func createCore(parameters *agentParameters) (walletcore.Service, error) {
	if parameters.core == nil || parameters.core.url == "" {
		return nil, errMissingCoreURL
	}

	binding, err := httpbinding.New(parameters.core.url,
		httpbinding.WithTimeout(parameters.core.timeout),
		httpbinding.WithReadRetries(parameters.core.retries, coreRetryInterval))
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet core binding: %w", err)
	}

	if parameters.core.waitTimeout > 0 {
		if err := waitForCore(binding, parameters.holder.OrganisationID, parameters.core.waitTimeout); err != nil {
			return nil, err
		}
	}

	return cached.New(binding, cached.WithSize(parameters.cacheSize)), nil
}

// waitForCore probes the wallet core until it answers a credential listing.
func waitForCore(core walletcore.Service, organisationID string, waitTimeout uint64) error {
	err := backoff.RetryNotify(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), coreProbeCallLimit)
			defer cancel()

			_, err := core.ListCredentials(ctx, &presentation.CredentialListQuery{
				OrganisationID: organisationID,
				PageSize:       minCredentialsProbe,
			})
			if err != nil && walletcore.CodeOf(err) == walletcore.ErrorCodeUnauthorized {
				return backoff.Permanent(err)
			}

			return err
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(coreProbeInterval), waitTimeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to reach wallet core, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to reach wallet core: %w", err)
	}

	return nil
}
