package entity

import "time"

// Tipos de movimiento sobre los ledgers.
const (
	MovementTypeINBOUND   = "INBOUND"   // entrada de mercancía
	MovementTypeOUTBOUND  = "OUTBOUND"  // salida física confirmada
	MovementTypeRESERVE   = "RESERVE"   // reserva blanda (delta 0)
	MovementTypeRELEASE   = "RELEASE"   // liberación de reserva (delta 0)
	MovementTypeADJUST    = "ADJUST"    // corrección manual
	MovementTypeRECONCILE = "RECONCILE" // corrección automática de drift
)

// MovementLogEntry es el registro inmutable de cada mutación de ledger.
// Se crea en la misma transacción que la mutación que documenta; nunca se actualiza ni se borra.
type MovementLogEntry struct {
	ID           string
	LedgerRef    string // stock:<wh>:<sku> o bin:<bin>:<sku>
	SKUID        string
	Delta        int64
	MovementType string
	Reference    string // orden, GRN o referencia de sistema
	BalanceAfter int64  // snapshot de quantity tras el commit
	Actor        string
	CreatedAt    time.Time
}
