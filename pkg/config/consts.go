package config

const (
	EnvPrefix = "SHOPCO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SHOPCO_DB_DSN"
	EnvDBHost = "SHOPCO_DB_HOST"
	EnvDBUser = "SHOPCO_DB_USER"
	EnvDBName = "SHOPCO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
