// Package plant описывает управляемую холодильную станцию: декларированный
// набор входов управления, набор измеряемых выходов и замкнутый
// энергобаланс конденсаторного контура.
package plant

// ControlFrame полный набор команд исполнительным механизмам на один шаг.
// Ключи должны в точности совпадать с декларированным набором входов.
type ControlFrame map[string]float64
