package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Database struct {
	Host     string `envconfig:"DB_HOST" default:"postgres"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"program"`
	Password string `envconfig:"DB_PASSWORD" default:"test"`
	Name     string `envconfig:"DB_NAME" default:"booklend"`
}

func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

type Identity struct {
	Database
	Addr         string `envconfig:"IDENTITY_ADDR" default:":8040"`
	JWTSecret    string `envconfig:"JWT_SECRET" default:"local_dev_secret"`
	TokenTTLMins int    `envconfig:"JWT_EXPIRE_MIN" default:"60"`
}

type Catalog struct {
	Database
	Addr     string `envconfig:"CATALOG_ADDR" default:":8060"`
	AdminKey string `envconfig:"ADMIN_API_KEY" default:"admin"`
}

type Booking struct {
	Database
	Addr string `envconfig:"BOOKING_ADDR" default:":8070"`
}

type Gateway struct {
	Addr        string `envconfig:"GATEWAY_ADDR" default:":8080"`
	IdentityURL string `envconfig:"IDENTITY_SERVICE_URL" default:"http://localhost:8040"`
	CatalogURL  string `envconfig:"CATALOG_SERVICE_URL" default:"http://localhost:8060"`
	BookingURL  string `envconfig:"BOOKING_SERVICE_URL" default:"http://localhost:8070"`
	JWTSecret   string `envconfig:"JWT_SECRET" default:"local_dev_secret"`
}

func LoadIdentity() (Identity, error) {
	var c Identity
	err := envconfig.Process("", &c)
	return c, err
}

func LoadCatalog() (Catalog, error) {
	var c Catalog
	err := envconfig.Process("", &c)
	return c, err
}

func LoadBooking() (Booking, error) {
	var c Booking
	err := envconfig.Process("", &c)
	return c, err
}

func LoadGateway() (Gateway, error) {
	var c Gateway
	err := envconfig.Process("", &c)
	return c, err
}
