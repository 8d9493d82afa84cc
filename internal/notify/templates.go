package notify

import "fmt"

// The dark/gold release branding. Templates are inline-styled HTML since
// most mail clients strip everything else.

// PurchaseConfirmedHTML is the email sent once per purchase record, right
// after first creation. It carries the storefront link and the one-time
// backup link.
func PurchaseConfirmedHTML(accessLink, backupLink, paymentID string) string {
	return fmt.Sprintf(`
<div style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #0a0a0a; color: #ffffff; padding: 40px 20px; text-align: center;">
    <div style="max-width: 600px; margin: 0 auto; border: 1px solid #333; border-radius: 16px; padding: 40px; background-color: #0f0c0a;">
        <h1 style="color: #d4af37; text-transform: uppercase; letter-spacing: 2px; margin-bottom: 10px; font-size: 24px;">Purchase Confirmed</h1>
        <p style="color: #888; font-size: 12px; letter-spacing: 1px; text-transform: uppercase; margin-top: 0;">RATCHOPPER &bull; B.T.S</p>

        <div style="border-top: 1px solid #333; border-bottom: 1px solid #333; padding: 30px 0; margin: 30px 0;">
            <p style="color: #cccccc; font-size: 16px; line-height: 1.6; margin-bottom: 25px;">Your copy is unlocked.</p>

            <a href="%s" style="display: inline-block; padding: 16px 32px; background-color: #d4af37; color: #000000; text-decoration: none; font-weight: bold; border-radius: 8px; font-size: 16px; margin-bottom: 20px;">ACCESS CONTENT</a>

            <div style="margin-top: 30px; text-align: center;">
                <p style="color: #666; font-size: 12px; margin-bottom: 8px;">EMERGENCY BACKUP LINK:</p>
                <a href="%s" style="color: #d4af37; font-size: 12px; text-decoration: none; border-bottom: 1px dotted #d4af37;">%s</a>
                <p style="color: #555; font-size: 11px; margin-top: 8px;">Only use if you lose access. Link works once.</p>
            </div>
        </div>

        <p style="color: #333; font-size: 10px;">ID: %s</p>
    </div>
</div>`, accessLink, backupLink, backupLink, paymentID)
}

// ReservationSecuredHTML confirms a phase-one reservation and shows the
// buyer their code.
func ReservationSecuredHTML(reservationCode string) string {
	return fmt.Sprintf(`
<div style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #0a0a0a; color: #ffffff; padding: 40px 20px; text-align: center;">
    <div style="max-width: 600px; margin: 0 auto; border: 1px solid #333; border-radius: 16px; padding: 40px; background-color: #0f0c0a;">
        <h1 style="color: #d4af37; text-transform: uppercase; letter-spacing: 2px; margin-bottom: 10px; font-size: 24px;">Spot Secured</h1>
        <p style="color: #888; font-size: 12px; letter-spacing: 1px; text-transform: uppercase; margin-top: 0;">RATCHOPPER &bull; B.T.S</p>

        <div style="border-top: 1px solid #333; border-bottom: 1px solid #333; padding: 30px 0; margin: 30px 0;">
            <p style="color: #cccccc; font-size: 16px; line-height: 1.6; margin-bottom: 20px;">You have successfully secured your spot.</p>
            <p style="color: #cccccc; font-size: 16px; line-height: 1.6;">When the Tunisian payment options open, you will be amongst the first to receive an early access link.</p>

            <div style="background: rgba(212, 175, 55, 0.1); border: 1px solid #d4af37; border-radius: 8px; padding: 15px; margin-top: 25px; display: inline-block;">
                <span style="color: #d4af37; font-weight: bold; font-size: 18px; letter-spacing: 1px;">CODE: %s</span>
            </div>
        </div>

        <p style="color: #555; font-size: 11px;">Keep this code for your records.</p>
    </div>
</div>`, reservationCode)
}

// ReservationAccessHTML is the phase-two email opening the payment window
// for an early-access reservation.
func ReservationAccessHTML(activationLink, reservationCode string) string {
	return fmt.Sprintf(`
<div style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #0a0a0a; color: #ffffff; padding: 40px 20px; text-align: center;">
    <div style="max-width: 600px; margin: 0 auto; border: 1px solid #333; border-radius: 16px; padding: 40px; background-color: #0f0c0a;">
        <h1 style="color: #d4af37; text-transform: uppercase; letter-spacing: 2px; margin-bottom: 10px; font-size: 28px;">YOU ARE IN</h1>
        <p style="color: #888; font-size: 12px; letter-spacing: 1px; text-transform: uppercase; margin-top: 0;">Your Access Window Is Open</p>

        <div style="border-top: 1px solid #333; border-bottom: 1px solid #333; padding: 30px 0; margin: 30px 0;">
            <p style="color: #cccccc; font-size: 16px; line-height: 1.6; margin-bottom: 30px;">Click the link below to unlock the Tunisian payment gateway.</p>

            <a href="%s" style="display: inline-block; padding: 16px 32px; background-color: #d4af37; color: #000000; text-decoration: none; font-weight: bold; border-radius: 8px; font-size: 16px; letter-spacing: 0.5px;">ENTER SHOP</a>

            <p style="color: #666; font-size: 12px; margin-top: 20px;">Reservation Code: %s</p>
        </div>

        <p style="color: #555; font-size: 11px;">Link valid for 24 hours.</p>
    </div>
</div>`, activationLink, reservationCode)
}
