package match

import "fmt"

// Message text is centralized here so the FSM logic in controller.go
// and placement.go stays focused on state transitions.

func msgWelcomeToMatch(opponent string) string {
	return fmt.Sprintf("match starting against %s — place your fleet", opponent)
}

func msgPlacementPrompt(shipName string, length int) string {
	return fmt.Sprintf("place your %s (length %d): enter a starting coordinate (e.g. A1)", shipName, length)
}

func msgOrientationPrompt(shipName string) string {
	return fmt.Sprintf("orientation for your %s — H (horizontal) or V (vertical)?", shipName)
}

func msgPlacementInvalid(reason string) string {
	return fmt.Sprintf("cannot place there: %s — try again", reason)
}

func msgPlacementTimeout(shipName string) string {
	return fmt.Sprintf("timed out placing your %s", shipName)
}

func msgOpponentPlacing() string {
	return "waiting for your opponent to finish placing their fleet"
}

func msgYourTurn() string {
	return "your turn — fire at a coordinate (e.g. B7)"
}

func msgWaitingForOpponent(opponent string) string {
	return fmt.Sprintf("waiting for %s to move", opponent)
}

func msgShotResult(shooter, target string, hit bool, sunk string, alreadyShot bool) string {
	switch {
	case alreadyShot:
		return fmt.Sprintf("%s fired at %s again: already resolved, turn wasted", shooter, target)
	case sunk != "":
		return fmt.Sprintf("%s fired at %s: HIT, and sank the %s!", shooter, target, sunk)
	case hit:
		return fmt.Sprintf("%s fired at %s: HIT", shooter, target)
	default:
		return fmt.Sprintf("%s fired at %s: miss", shooter, target)
	}
}

func msgCoordinateInvalid(err error) string {
	return fmt.Sprintf("invalid coordinate: %s", err)
}

func msgTimeoutStrike(who string, count, max int) string {
	return fmt.Sprintf("%s let the clock run out (%d/%d) — turn passes", who, count, max)
}

func msgForfeitTimeout(loser string) string {
	return fmt.Sprintf("%s ran out the clock too many times and forfeits the match", loser)
}

func msgQuit(who string) string {
	return fmt.Sprintf("%s has quit the match", who)
}

func msgGameStartCountdown(seconds int) string {
	return fmt.Sprintf("both players found — placement begins in %d seconds", seconds)
}

func msgDisconnected(who string, windowSeconds int) string {
	return fmt.Sprintf("%s disconnected — waiting up to %ds for them to reconnect", who, windowSeconds)
}

func msgReconnectCountdown(who string, remaining int) string {
	return fmt.Sprintf("still waiting for %s to reconnect (%ds left)", who, remaining)
}

func msgReconnected(who string) string {
	return fmt.Sprintf("%s has reconnected", who)
}

func msgReconnectResumedPrompt() string {
	return "you're back — resuming the match"
}

func msgForfeitDisconnect(loser string) string {
	return fmt.Sprintf("%s failed to reconnect in time and forfeits the match", loser)
}

func msgGameOver(winner string, reason Reason) string {
	if winner == "" {
		return "GAME OVER — the match ended due to a server error"
	}
	switch reason {
	case ReasonForfeitTimeout:
		return fmt.Sprintf("GAME OVER — %s wins by forfeit (timeout)", winner)
	case ReasonForfeitDisconnect:
		return fmt.Sprintf("GAME OVER — %s wins by forfeit (disconnect)", winner)
	case ReasonQuit:
		return fmt.Sprintf("GAME OVER — %s wins, opponent quit", winner)
	default:
		return fmt.Sprintf("GAME OVER — %s wins!", winner)
	}
}

func msgServerError() string {
	return "a server error ended this match; you have been returned to the queue"
}
