package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/PrivvyRentals/pricing_api/internal/models"
)

// ClientRepository provides data access methods for the clients table.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// getBy fetches a single client by a specific column. ip_whitelist is a
// TEXT[] column and must be scanned via pq.Array.
func (r *ClientRepository) getBy(where string, arg any) (*models.Client, error) {
	const base = `SELECT id, client_id, name, api_key, sandbox_key,
		ip_whitelist, is_active, created_at, updated_at
		FROM clients WHERE `

	row := r.db.QueryRowx(base+where+" LIMIT 1", arg)
	var c models.Client
	if err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.Name,
		&c.APIKey,
		&c.SandboxKey,
		pq.Array(&c.IPWhitelist),
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &c, nil
}

// GetByAPIKey finds a client by production API key.
func (r *ClientRepository) GetByAPIKey(apiKey string) (*models.Client, error) {
	return r.getBy("api_key = $1", apiKey)
}

// GetBySandboxKey finds a client by sandbox key.
func (r *ClientRepository) GetBySandboxKey(sandboxKey string) (*models.Client, error) {
	return r.getBy("sandbox_key = $1", sandboxKey)
}

// GetByID finds a client by numeric id.
func (r *ClientRepository) GetByID(id int) (*models.Client, error) {
	return r.getBy("id = $1", id)
}

// Create creates a new client.
func (r *ClientRepository) Create(client *models.Client) error {
	query := `INSERT INTO clients (client_id, name, api_key, sandbox_key, ip_whitelist, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, created_at, updated_at`

	return r.db.QueryRowx(query,
		client.ClientID,
		client.Name,
		client.APIKey,
		client.SandboxKey,
		pq.Array(client.IPWhitelist),
		client.IsActive,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

// UpdateKeys replaces a client's API keys.
func (r *ClientRepository) UpdateKeys(id int, apiKey, sandboxKey string) error {
	query := `UPDATE clients SET api_key = $1, sandbox_key = $2 WHERE id = $3`
	_, err := r.db.Exec(query, apiKey, sandboxKey, id)
	return err
}

// List retrieves all clients, newest first.
func (r *ClientRepository) List() ([]*models.Client, error) {
	query := `SELECT id, client_id, name, api_key, sandbox_key,
	                 ip_whitelist, is_active, created_at, updated_at
	          FROM clients
	          ORDER BY created_at DESC`

	rows, err := r.db.Queryx(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(
			&c.ID,
			&c.ClientID,
			&c.Name,
			&c.APIKey,
			&c.SandboxKey,
			pq.Array(&c.IPWhitelist),
			&c.IsActive,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		clients = append(clients, &c)
	}

	return clients, rows.Err()
}
