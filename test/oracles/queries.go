package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns queries that must come back empty whatever the interleaving.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_current_record",
			SQL: `SELECT rfc, ente, COUNT(*) FROM registros_laborales
                  GROUP BY rfc, ente HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_unique_archive_hash",
			SQL: `SELECT hash_firma, COUNT(*) FROM laboral
                  GROUP BY hash_firma HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_history_per_prevalidation",
			SQL: `SELECT p.rfc, p.ente FROM prevalidaciones p
                  WHERE NOT EXISTS (
                      SELECT 1 FROM prevalidaciones_historial h
                      WHERE h.rfc = p.rfc AND h.ente = p.ente)`,
		},
		{
			Name: "O4_history_matches_state",
			SQL: `WITH last AS (
                      SELECT DISTINCT ON (rfc, ente) rfc, ente, estado_nuevo
                      FROM prevalidaciones_historial
                      ORDER BY rfc, ente, id DESC)
                  SELECT p.rfc, p.ente, p.estado, l.estado_nuevo
                  FROM prevalidaciones p JOIN last l ON l.rfc = p.rfc AND l.ente = p.ente
                  WHERE l.estado_nuevo <> p.estado`,
		},
		{
			Name: "O5_cascade_uniform",
			SQL: `SELECT rfc, usuario, creado FROM prevalidaciones_historial
                  GROUP BY rfc, usuario, creado
                  HAVING COUNT(DISTINCT estado_nuevo) > 1 OR COUNT(DISTINCT accion) > 1`,
		},
		{
			Name: "O6_single_publication_row",
			SQL:  `SELECT COUNT(*) FROM publicacion HAVING COUNT(*) <> 1`,
		},
		{
			Name: "O7_known_states",
			SQL: `SELECT 'solventaciones', rfc, ente, estado FROM solventaciones
                  WHERE estado NOT IN ('Sin valoración', 'Solventado', 'No Solventado')
                  UNION ALL
                  SELECT 'prevalidaciones', rfc, ente, estado FROM prevalidaciones
                  WHERE estado NOT IN ('Sin valoración', 'Solventado')`,
		},
		{
			Name: "O8_verdict_has_reason",
			SQL: `SELECT rfc, ente, estado, catalogo, otro_texto FROM prevalidaciones
                  WHERE estado = 'Solventado'
                    AND (catalogo = '' OR (catalogo = 'Otro' AND otro_texto = ''))
                  UNION ALL
                  SELECT rfc, ente, estado, catalogo, otro_texto FROM solventaciones
                  WHERE estado <> 'Sin valoración'
                    AND (catalogo = '' OR (catalogo = 'Otro' AND otro_texto = ''))`,
		},
		{
			Name: "O9_revert_clears_reason",
			SQL: `SELECT rfc, ente FROM prevalidaciones
                  WHERE estado = 'Sin valoración'
                    AND (catalogo <> '' OR otro_texto <> '' OR comentario <> '')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
